package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	id "subsidyledger/pkg/domain"
	audit "subsidyledger/pkg/platform/audit"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists audit events to a local SQLite database so compliance
// exports work without Kafka infrastructure.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so compliance export reads don't block appends.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id           TEXT PRIMARY KEY,
			action       TEXT NOT NULL,
			category     TEXT NOT NULL,
			timestamp    INTEGER NOT NULL,
			actor        TEXT,
			request_id   TEXT,
			project_id   INTEGER,
			milestone_id INTEGER,
			source       TEXT,
			data_id      TEXT,
			amount       INTEGER,
			decision     TEXT,
			reason       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_project ON audit_events(project_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events
		(id, action, category, timestamp, actor, request_id,
		 project_id, milestone_id, source, data_id, amount, decision, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), string(event.Action), string(event.Action.Category()),
		ts.UnixNano(), string(event.Actor), event.RequestID,
		uint64(event.ProjectID), uint64(event.MilestoneID),
		string(event.Source), string(event.DataID),
		uint64(event.Amount), event.Decision, event.Reason,
	)
	return err
}

// ListByProject returns events referencing the project in append order.
func (s *Store) ListByProject(ctx context.Context, projectID id.ProjectID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, timestamp, actor, request_id,
		project_id, milestone_id, source, data_id, amount, decision, reason
		FROM audit_events WHERE project_id = ? ORDER BY timestamp`, uint64(projectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e                     audit.Event
			action, actor         string
			source, dataID        string
			tsNanos               int64
			projID, milID, amount uint64
		)
		if err := rows.Scan(&action, &tsNanos, &actor, &e.RequestID,
			&projID, &milID, &source, &dataID, &amount, &e.Decision, &e.Reason); err != nil {
			return nil, err
		}
		e.Action = audit.AuditEvent(action)
		e.Timestamp = time.Unix(0, tsNanos)
		e.Actor = id.Identity(actor)
		e.ProjectID = id.ProjectID(projID)
		e.MilestoneID = id.MilestoneID(milID)
		e.Source = id.SourceKey(source)
		e.DataID = id.DataPointID(dataID)
		e.Amount = id.Amount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
