// main wires the services and owns the process lifecycle. Business
// logic lives in the internal packages; everything here is assembly.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"subsidyledger/internal/access"
	"subsidyledger/internal/control"
	"subsidyledger/internal/dispute"
	"subsidyledger/internal/funds"
	fundsmetrics "subsidyledger/internal/funds/metrics"
	"subsidyledger/internal/jwttoken"
	"subsidyledger/internal/ledger"
	ledgermetrics "subsidyledger/internal/ledger/metrics"
	"subsidyledger/internal/oracle"
	"subsidyledger/internal/platform/config"
	"subsidyledger/internal/platform/httpserver"
	"subsidyledger/internal/platform/logger"
	"subsidyledger/internal/platform/metrics"
	platformredis "subsidyledger/internal/platform/redis"
	"subsidyledger/internal/sources"
	"subsidyledger/internal/sweeper"
	httptransport "subsidyledger/internal/transport/http"
	audit "subsidyledger/pkg/platform/audit"
	auditkafka "subsidyledger/pkg/platform/audit/kafka"
	auditpublisher "subsidyledger/pkg/platform/audit/publisher"
	auditmemory "subsidyledger/pkg/platform/audit/store/memory"
	auditsqlite "subsidyledger/pkg/platform/audit/store/sqlite"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("SUBSIDYLEDGER_CONFIG"))
	if err != nil {
		return err
	}

	// Audit trail: durable store when configured, optionally mirrored to
	// Kafka, published off the request path.
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if cfg.Audit.SQLitePath != "" {
		sqliteStore, err := auditsqlite.New(cfg.Audit.SQLitePath)
		if err != nil {
			return err
		}
		defer func() { _ = sqliteStore.Close() }()
		auditStore = sqliteStore
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer func() { _ = kafkaStore.Close() }()
		auditStore = audit.NewFanout(auditStore, kafkaStore)
	}
	publisherOpts := []auditpublisher.Option{auditpublisher.WithLogger(log)}
	if cfg.Audit.AsyncBuffer > 0 {
		publisherOpts = append(publisherOpts, auditpublisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer))
	}
	auditPub := auditpublisher.NewPublisher(auditStore, publisherOpts...)
	defer func() { _ = auditPub.Close() }()

	// Pause flag: shared over Redis when configured.
	var controlStore control.Store = control.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		controlStore = control.NewRedisStore(redisClient.Client)
	}

	// Oracle data: Postgres when configured.
	var oracleStore oracle.Store = oracle.NewInMemoryStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pgStore := oracle.NewPostgres(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			return err
		}
		oracleStore = pgStore
	}

	httpMetrics := metrics.New()
	authz := access.NewService(access.NewInMemoryRoleStore(),
		access.WithLogger(log), access.WithAuditPublisher(auditPub))
	ctl := control.NewService(controlStore, authz,
		control.WithLogger(log), control.WithAuditPublisher(auditPub))
	pool := funds.NewPool(authz,
		funds.WithLogger(log), funds.WithMetrics(fundsmetrics.New()), funds.WithAuditPublisher(auditPub))
	src := sources.NewService(sources.NewInMemoryStore(), authz,
		sources.WithLogger(log), sources.WithAuditPublisher(auditPub))
	orc := oracle.NewService(oracleStore, src, ctl, authz,
		oracle.WithLogger(log), oracle.WithAuditPublisher(auditPub))
	led := ledger.NewService(ledger.NewInMemoryStore(), pool, authz, authz, ctl,
		ledger.WithLogger(log), ledger.WithMetrics(ledgermetrics.New()),
		ledger.WithAuditPublisher(auditPub), ledger.WithOracle(orc))
	disp := dispute.NewService(dispute.NewInMemoryStore(), led, authz, authz,
		dispute.WithLogger(log), dispute.WithAuditPublisher(auditPub))
	tokens := jwttoken.NewManager([]byte(cfg.JWT.SigningKey), cfg.JWT.Issuer, cfg.JWT.TTL)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  httpMetrics,
		Tokens:   tokens,
		Pool:     pool,
		Ledger:   led,
		Disputes: disp,
		Oracle:   orc,
		Sources:  src,
		Control:  ctl,
		Access:   authz,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	if cfg.Sweeper.Enabled {
		sweepOpts := []sweeper.Option{sweeper.WithLogger(log)}
		if cfg.Sweeper.SweepToFailed {
			sweepOpts = append(sweepOpts, sweeper.WithSweepToFailed())
		}
		sw, err := sweeper.New(led, cfg.Sweeper.Schedule, sweepOpts...)
		if err != nil {
			return err
		}
		sw.Start()
		defer sw.Stop()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("subsidy ledger listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
