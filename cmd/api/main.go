package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/app"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/assistant"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/blob"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/config"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/export"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/llm"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/lock"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/logging"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/metrics"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/notify"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/ratelimit"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/search"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/session"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/versioning"
)

func main() {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Journey board API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	})
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	}
	migrate.Flags().Bool("down", false, "roll back every applied migration instead")
	root.AddCommand(migrate)
	root.AddCommand(&cobra.Command{
		Use:   "set-role <user> <viewer|commenter|editor|admin>",
		Short: "Assign a role to a user by id, email or display name",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetRole,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap(ctx context.Context) (config.Config, *zap.Logger, *sql.DB, store.Dialect, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, "", err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, nil, "", fmt.Errorf("build logger: %w", err)
	}
	dialect, err := store.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return config.Config{}, nil, nil, "", err
	}
	db, err := store.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, nil, "", fmt.Errorf("database connection failed: %w", err)
	}
	return cfg, logger, db, dialect, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	_, logger, db, dialect, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer func() { _ = logger.Sync() }()

	if down, _ := cmd.Flags().GetBool("down"); down {
		if err := store.RollbackMigrations(ctx, db); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		logger.Info("migrations rolled back")
		return nil
	}
	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("migrations applied", zap.String("dialect", string(dialect)))
	return nil
}

func runSetRole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, logger, db, dialect, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer func() { _ = logger.Sync() }()

	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	user, err := app.AssignRole(ctx, store.NewStore(db, dialect), args[0], args[1])
	if err != nil {
		return err
	}
	logger.Info("role assigned", zap.String("user", user.ID), zap.String("role", user.Role))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, db, dialect, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer func() { _ = logger.Sync() }()

	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	dataStore := store.NewStore(db, dialect)
	collector := metrics.NewCollector("journey")

	var (
		sessions session.Store = session.NewMemoryStore()
		locker   lock.Locker   = lock.NewLocalLocker()
		limiter  ratelimit.Limiter
	)
	window := time.Minute
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		logger.Info("using redis for sessions, locks and rate limits")
		sessions = redisStore
		locker = lock.NewRedisLocker(redisStore.Client(), 30*time.Second)
		limiter = ratelimit.NewRedisLimiter(redisStore.Client(), "llm", cfg.LLMRatePerMinute, window)
	} else {
		logger.Info("using in-process sessions, locks and rate limits")
		limiter = ratelimit.NewLocalLimiter(cfg.LLMRatePerMinute, window)
	}

	var objects blob.Store
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		minioStore, err := blob.NewMinioStore(blob.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			URLTTL:    cfg.UploadURLTTL,
		}, logger)
		if err != nil {
			return err
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			logger.Warn("object storage bucket check failed", zap.Error(err))
		}
		objects = minioStore
	} else {
		logger.Warn("S3_ENDPOINT not set; uploads are disabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, dataStore, logger)
	if meiliClient != nil {
		go func() {
			if err := searchService.ReindexAll(ctx, dataStore); err != nil {
				logger.Warn("search reindex failed", zap.Error(err))
			}
		}()
	}

	completer := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
		Observe: func(d time.Duration) { collector.LLMDuration.Observe(d.Seconds()) },
	}, logger)
	assistantService := assistant.NewService(dataStore, completer, limiter, logger, assistant.Options{
		Observe: func(kind, outcome string) {
			collector.AssistantRequests.WithLabelValues(kind, outcome).Inc()
			if outcome == "rate_limited" {
				collector.RateLimited.WithLabelValues("llm").Inc()
			}
		},
	})

	webhook := notify.NewWebhook(cfg.NotifyWebhookURL, logger, func(outcome string) {
		collector.Notifications.WithLabelValues(outcome).Inc()
	})
	defer webhook.Wait()

	service := app.New(cfg, app.Deps{
		Store:     dataStore,
		Sessions:  sessions,
		Versions:  versioning.NewService(dataStore, locker, logger),
		Assistant: assistantService,
		Blob:      objects,
		Search:    searchService,
		Notifier:  webhook,
		Exporter:  export.NewService(dataStore, cfg.ChromePath, logger),
		Metrics:   collector,
		Logger:    logger,
	})
	defer searchService.Wait()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin, logger, collector).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("journey api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
