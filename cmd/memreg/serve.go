package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Kitoverdie1/uph-mem-system/pkg/api"
	"github.com/Kitoverdie1/uph-mem-system/pkg/audit"
	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
	"github.com/Kitoverdie1/uph-mem-system/pkg/cache"
	"github.com/Kitoverdie1/uph-mem-system/pkg/database"
	"github.com/Kitoverdie1/uph-mem-system/pkg/ha"
	"github.com/Kitoverdie1/uph-mem-system/pkg/inbox"
	"github.com/Kitoverdie1/uph-mem-system/pkg/jobs"
	"github.com/Kitoverdie1/uph-mem-system/pkg/metrics"
	"github.com/Kitoverdie1/uph-mem-system/pkg/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP API",
	Args:  cobra.NoArgs,
	Run:   runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default :8080)")
}

func runServe(cmd *cobra.Command, _ []string) {
	logger.Info("starting memreg server",
		"version", version,
		"listen", cfg.Server.Listen,
		"store", cfg.Store.Backend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		glog.Fatalf("Failed to open registry store: %v", err)
	}
	defer rt.Close()

	db, err := openJobDatabase(cfg)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	jobStore := jobs.NewJobStore(db)
	auditStore := audit.NewStore(db)
	if err := ha.Migrate(ctx, db, migrationConfig(cfg), jobStore.AutoMigrate, auditStore.AutoMigrate); err != nil {
		glog.Fatalf("Failed to migrate database: %v", err)
	}

	cacheCfg := cfg.Cache.CacheConfig()
	responses := cache.NewCacheManager(cacheCfg)
	svc := newService(rt,
		service.WithMetrics(metrics.New(nil)),
		service.WithCache(cacheCfg),
		service.WithChangeHook(responses.InvalidateAll),
	)

	files, err := openAttachments(ctx, cfg)
	if err != nil {
		glog.Fatalf("Failed to open attachment storage: %v", err)
	}

	identity, err := identityMiddleware(cfg, logger)
	if err != nil {
		glog.Fatalf("Failed to configure authentication: %v", err)
	}

	auditCfg := cfg.Audit.AuditConfig()
	opts := []api.Option{
		api.WithConfig(api.Config{
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			PublicBaseURL:  cfg.Server.PublicBaseURL,
			SpoolDir:       cfg.Server.SpoolDir,
		}),
		api.WithLogger(logger),
		api.WithAuthorizer(authz.NewAuthorizer(authz.AuthzMode(cfg.Server.Auth.Authz))),
		api.WithIdentity(identity),
		api.WithCache(responses),
		api.WithJobs(jobStore),
		api.WithAudit(auditStore, auditCfg),
		api.WithReadyCheck("database", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if rt.recorder != nil {
		opts = append(opts, api.WithHistory(rt.recorder))
	}
	server := api.New(svc, files, opts...)

	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		jobs.NewWorkerPool(jobStore, svc, cfg.Jobs.JobConfig(), logger).Run(ctx)
	}()
	go func() {
		defer background.Done()
		audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger).Run(ctx)
	}()

	if inboxCfg := cfg.Inbox.InboxConfig(); inboxCfg.Enabled {
		watcher, err := inbox.New(inboxCfg, jobStore, logger)
		if err != nil {
			glog.Fatalf("Failed to start inbox: %v", err)
		}
		background.Add(1)
		go func() {
			defer background.Done()
			if err := watcher.Run(ctx); err != nil {
				logger.Error("inbox stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()
	logger.Info("memreg server ready", "listen", cfg.Server.Listen)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	background.Wait()
	logger.Info("memreg server stopped")
}
