package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bryanwahyu/testresult-ingest/internal/application"
	"github.com/bryanwahyu/testresult-ingest/internal/application/ownership"
	apptr "github.com/bryanwahyu/testresult-ingest/internal/application/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/config"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/patients"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
	mysqlp "github.com/bryanwahyu/testresult-ingest/internal/infra/db/mysql"
	"github.com/bryanwahyu/testresult-ingest/internal/infra/db/postgres"
	"github.com/bryanwahyu/testresult-ingest/internal/infra/httpserver"
	"github.com/bryanwahyu/testresult-ingest/internal/infra/storage"
	"github.com/bryanwahyu/testresult-ingest/internal/logging"
	"github.com/bryanwahyu/testresult-ingest/internal/middleware"
)

// auditStore is what both SQL audit repositories implement.
type auditStore interface {
	audit.Recorder
	audit.Reader
}

type persistence struct {
	conn     *sql.DB
	repo     domain.Repository
	patients patients.Directory
	audit    auditStore
}

func openPersistence(ctx context.Context, cfg *config.Config) (*persistence, error) {
	switch cfg.Database.Driver {
	case "mysql":
		conn, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := mysqlp.Migrate(ctx, conn); err != nil {
				conn.Close()
				return nil, fmt.Errorf("mysql migrate: %w", err)
			}
		}
		return &persistence{
			conn:     conn,
			repo:     mysqlp.NewTestResultRepository(conn),
			patients: mysqlp.NewPatientDirectory(conn),
			audit:    mysqlp.NewAuditRepository(conn),
		}, nil
	default:
		conn, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, conn); err != nil {
				conn.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return &persistence{
			conn:     conn,
			repo:     postgres.NewTestResultRepository(conn),
			patients: postgres.NewPatientDirectory(conn),
			audit:    postgres.NewAuditRepository(conn),
		}, nil
	}
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openPersistence(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.conn.Close()

	// init minio
	store, err := storage.New(ctx, storage.Options{
		Endpoint:  cfg.Minio.Endpoint,
		Region:    cfg.Minio.Region,
		Bucket:    cfg.Minio.BucketName,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("minio init: %w", err)
	}

	metrics, err := middleware.NewMetrics("testresults")
	if err != nil {
		return err
	}
	observed, err := storage.Instrument(store, metrics.Registerer())
	if err != nil {
		return err
	}

	// init service
	svc := &apptr.Service{
		Repo:     db.repo,
		Store:    observed,
		Owners:   ownership.NewResolver(db.patients),
		Patients: db.patients,
		Audit:    db.audit,
		History:  db.audit,
		Clock:    application.SystemClock{},
		Log:      logger.Named("testresults"),
		Settings: apptr.Settings{
			KeyPrefix:            cfg.Uploads.KeyPrefix,
			UploadExpiry:         cfg.Uploads.UploadURLExpiry.Duration,
			DownloadExpiry:       cfg.Uploads.DownloadURLExpiry.Duration,
			MaxDirectUploadBytes: cfg.Uploads.MaxDirectUploadBytes,
			MaxMultipartParts:    cfg.Uploads.MaxMultipartParts,
		},
	}

	// init router
	handler := httpserver.NewRouter(svc, logger.Named("http"), httpserver.Options{
		JWTSecret:           []byte(cfg.Auth.JWTSecret),
		JWTIssuer:           cfg.Auth.Issuer,
		RatePerSecond:       cfg.RateLimit.RequestsPerSecond,
		RateBurst:           cfg.RateLimit.Burst,
		AllowedOrigins:      cfg.CORS.AllowedOrigins,
		Metrics:             metrics,
		RequestTimeout:      cfg.Server.RequestTimeout.Duration,
		DirectUploadTimeout: cfg.Uploads.DirectUploadTimeout.Duration,
		Health: map[string]middleware.HealthCheck{
			"database": middleware.PingDB(db.conn),
			"storage":  store.Check,
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration,
		ReadTimeout:       cfg.Server.ReadTimeout.Duration,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
		IdleTimeout:       cfg.Server.IdleTimeout.Duration,
	}

	// run server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("db_driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
