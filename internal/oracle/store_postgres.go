package oracle

import (
	"context"
	"errors"
	"fmt"

	"subsidyledger/internal/oracle/models"
	srcmodels "subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
	"subsidyledger/pkg/platform/sentinel"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists data points durably. A bigserial seq column
// preserves submission order independent of reading timestamps, which
// data providers control.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema. Called once at startup by the wiring code.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS data_points (
			id           TEXT PRIMARY KEY,
			source       TEXT NOT NULL,
			source_type  TEXT NOT NULL,
			value        BIGINT NOT NULL,
			ts           TIMESTAMPTZ NOT NULL,
			submitted_by TEXT NOT NULL,
			verified     BOOLEAN NOT NULL DEFAULT FALSE,
			verified_by  TEXT NOT NULL DEFAULT '',
			metadata     TEXT NOT NULL DEFAULT '',
			seq          BIGSERIAL
		);
		CREATE INDEX IF NOT EXISTS idx_data_points_source_seq ON data_points(source, seq);
	`)
	if err != nil {
		return fmt.Errorf("migrate data_points: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, dp *models.DataPoint) error {
	// ON CONFLICT DO NOTHING: identical observation resubmitted keeps
	// the original record and its history position.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO data_points (id, source, source_type, value, ts, submitted_by, verified, verified_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		string(dp.ID), string(dp.Source), string(dp.SourceType), int64(dp.Value),
		dp.Timestamp, string(dp.SubmittedBy), dp.Verified, string(dp.VerifiedBy), dp.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert data point: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, dataID id.DataPointID) (*models.DataPoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source, source_type, value, ts, submitted_by, verified, verified_by, metadata
		FROM data_points WHERE id = $1`, string(dataID))
	return scanDataPoint(row)
}

func (s *PostgresStore) SetVerified(ctx context.Context, dataID id.DataPointID, verified bool, by id.Identity) (*models.DataPoint, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE data_points SET verified = $2, verified_by = $3
		WHERE id = $1
		RETURNING id, source, source_type, value, ts, submitted_by, verified, verified_by, metadata`,
		string(dataID), verified, string(by))
	return scanDataPoint(row)
}

func (s *PostgresStore) QueryBySource(ctx context.Context, source id.SourceKey) ([]*models.DataPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, source_type, value, ts, submitted_by, verified, verified_by, metadata
		FROM data_points WHERE source = $1 ORDER BY seq`, string(source))
	if err != nil {
		return nil, fmt.Errorf("query data points: %w", err)
	}
	defer rows.Close()

	var out []*models.DataPoint
	for rows.Next() {
		dp, err := scanDataPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) History(ctx context.Context, source id.SourceKey) ([]id.DataPointID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM data_points WHERE source = $1 ORDER BY seq`, string(source))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []id.DataPointID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, id.DataPointID(raw))
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataPoint(row rowScanner) (*models.DataPoint, error) {
	var (
		dp                        models.DataPoint
		rawID, source, sourceType string
		submittedBy, verifiedBy   string
		value                     int64
	)
	err := row.Scan(&rawID, &source, &sourceType, &value, &dp.Timestamp,
		&submittedBy, &dp.Verified, &verifiedBy, &dp.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("data point: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan data point: %w", err)
	}
	dp.ID = id.DataPointID(rawID)
	dp.Source = id.SourceKey(source)
	dp.SourceType = srcmodels.SourceType(sourceType)
	dp.Value = uint64(value)
	dp.SubmittedBy = id.Identity(submittedBy)
	dp.VerifiedBy = id.Identity(verifiedBy)
	return &dp, nil
}
