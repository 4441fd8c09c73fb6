package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	accountingperiodservice "caritas/contexts/finance-core/accounting-period-service"
	periodpostgres "caritas/contexts/finance-core/accounting-period-service/adapters/postgres"
	ledgerservice "caritas/contexts/finance-core/ledger-service"
	ledgerpostgres "caritas/contexts/finance-core/ledger-service/adapters/postgres"
	"caritas/contexts/finance-core/ledger-service/application"
	reportservice "caritas/contexts/program-delivery/report-service"
	reportpostgres "caritas/contexts/program-delivery/report-service/adapters/postgres"
	"caritas/internal/platform/config"
	"caritas/internal/platform/db"
	"caritas/internal/platform/httpserver"
	"caritas/internal/platform/idempotency"
	"caritas/internal/platform/messaging"
	"caritas/internal/platform/storage"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	kafka    *messaging.KafkaPublisher
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	idempotency  *idempotency.PostgresStore
	ledger       application.Service
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	var attachments storage.AttachmentStore
	if strings.TrimSpace(cfg.CloudinaryURL) != "" {
		attachments, err = storage.NewCloudinaryStore(cfg.CloudinaryURL, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("cloudinary url not configured, attachments held in memory",
			"event", "bootstrap_attachment_store_fallback",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		attachments = storage.NewMemoryStore()
	}

	ledgerModule := ledgerservice.NewModule(ledgerservice.Dependencies{
		Repository: ledgerpostgres.NewRepository(pg, cfg.MutationTimeout),
		Storage:    attachments,
		Publisher:  kafka,
		Clock:      ledgerpostgres.SystemClock{},
		IDGen:      ledgerpostgres.UUIDGenerator{},
		Topic:      cfg.KafkaTopic,
		Logger:     logger,
	})

	periodModule := accountingperiodservice.NewModule(accountingperiodservice.Dependencies{
		Repository: periodpostgres.NewRepository(pg, cfg.MutationTimeout),
		Publisher:  kafka,
		Clock:      periodpostgres.SystemClock{},
		IDGen:      periodpostgres.UUIDGenerator{},
		Topic:      cfg.KafkaTopic,
		Logger:     logger,
	})

	reportModule := reportservice.NewModule(reportservice.Dependencies{
		Repository: reportpostgres.NewRepository(pg, cfg.MutationTimeout),
		Publisher:  kafka,
		Clock:      reportpostgres.SystemClock{},
		IDGen:      reportpostgres.UUIDGenerator{},
		Topic:      cfg.KafkaTopic,
		Logger:     logger,
	})

	idem := idempotency.Manager{
		Store:     idempotency.NewPostgresStore(pg.DB, cfg.IdempotencyRetention),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
	}
	auth := httpserver.Authenticator{
		Secret: []byte(cfg.JWTSecret),
		Logger: logger,
	}

	server := httpserver.New(ledgerModule, periodModule, reportModule, auth, idem, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		kafka:    kafka,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	ledgerModule := ledgerservice.NewModule(ledgerservice.Dependencies{
		Repository: ledgerpostgres.NewRepository(pg, cfg.MutationTimeout),
		Clock:      ledgerpostgres.SystemClock{},
		IDGen:      ledgerpostgres.UUIDGenerator{},
		Topic:      cfg.KafkaTopic,
		Logger:     logger,
	})

	return &WorkerApp{
		postgres:     pg,
		idempotency:  idempotency.NewPostgresStore(pg.DB, cfg.IdempotencyRetention),
		ledger:       ledgerModule.Service,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.kafka != nil {
		_ = a.kafka.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		w.sweepIdempotency(ctx)
		w.sweepBalances(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) sweepIdempotency(ctx context.Context) {
	deleted, err := w.idempotency.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Warn("idempotency retention sweep failed",
			"event", "worker_idempotency_sweep_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	if deleted > 0 {
		w.logger.Info("expired idempotency records removed",
			"event", "worker_idempotency_swept",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"deleted", deleted,
		)
	}
}

// sweepBalances recomputes each org's derived balance. The raw handle is
// used on purpose: the sweep runs without an actor and must see every org.
func (w *WorkerApp) sweepBalances(ctx context.Context) {
	var orgIDs []string
	err := w.postgres.DB.WithContext(ctx).
		Table("ledger_transactions").
		Distinct("org_id").
		Pluck("org_id", &orgIDs).
		Error
	if err != nil {
		w.logger.Warn("org enumeration failed",
			"event", "worker_balance_sweep_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	for _, orgID := range orgIDs {
		w.ledger.CheckBalanceIntegrity(ctx, orgID)
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
