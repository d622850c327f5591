package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/wastewatch-api/internal/handler"
	"github.com/noah-isme/wastewatch-api/internal/repository"
	"github.com/noah-isme/wastewatch-api/internal/router"
	"github.com/noah-isme/wastewatch-api/internal/service"
	"github.com/noah-isme/wastewatch-api/pkg/cache"
	"github.com/noah-isme/wastewatch-api/pkg/database"
	"github.com/noah-isme/wastewatch-api/pkg/events"
	"github.com/noah-isme/wastewatch-api/pkg/storage"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply pending migrations before serving")
}

func serve(ctx context.Context) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if autoMigrate {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			return err
		}
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "wastewatch", logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Leaderboard.CacheTTL, logr, cacheRepo.Enabled())

	blobs, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.MaxFileSizeBytes)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.DownloadURLTTL)
	media := service.NewMediaService(blobs, signer.WithTTL(cfg.Storage.UploadURLTTL), signer, service.MediaConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		APIPrefix:     cfg.APIPrefix,
		AllowedMIMEs:  cfg.Storage.AllowedMIMEs,
	}, metrics, logr)

	broker, err := events.NewPublisher(cfg.Events, logr)
	if err != nil {
		logr.Warn("event broker unavailable, events disabled", zap.Error(err))
		broker = events.Nop{}
	}
	publisher := events.NewDispatcher(broker, events.DispatcherConfig{
		Workers:      cfg.Events.Workers,
		BufferSize:   cfg.Events.BufferSize,
		MaxRetries:   cfg.Events.MaxRetries,
		DrainTimeout: cfg.Events.DrainTimeout,
		Logger:       logr,
	})
	defer publisher.Close() //nolint:errcheck

	validate := validator.New()
	identity := service.NewIdentityService(service.IdentityConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	txManager := repository.NewTxManager(db)
	profileRepo := repository.NewUserProfileRepository(db)

	profiles := service.NewProfileService(profileRepo, txManager, cacheSvc, media, nil, validate, logr, service.ProfileConfig{
		DefaultName:    cfg.Display.DefaultName,
		LeaderboardTTL: cfg.Leaderboard.CacheTTL,
	})
	composer := service.NewViewComposer(profileRepo, media, cfg.Display.AnonymousName, 0)
	reports := service.NewReportService(service.ReportDeps{
		Reports:   repository.NewWasteReportRepository(db),
		Comments:  repository.NewCommentRepository(db),
		Ledger:    profiles,
		Composer:  composer,
		Images:    media,
		Tx:        txManager,
		Events:    publisher,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	}, service.ReportConfig{
		StrictCleanup:         cfg.Reports.StrictCleanup,
		CommentsRequireReport: cfg.Reports.CommentsRequireReport,
	})
	exporter := service.NewExportService(reports, logr)

	checks := map[string]handler.Pinger{"database": db}
	if cacheRepo.Enabled() {
		checks["cache"] = handler.PingerFunc(cacheRepo.Ping)
	}

	engine := router.New(router.Deps{
		Config:   cfg,
		Logger:   logr,
		Identity: identity,
		Metrics:  metrics,
	}, router.Handlers{
		Reports:  handler.NewReportHandler(reports, exporter),
		Profiles: handler.NewProfileHandler(profiles),
		Storage:  handler.NewStorageHandler(media),
		Metrics:  handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
