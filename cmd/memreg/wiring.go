package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gorm.io/gorm"

	"github.com/Kitoverdie1/uph-mem-system/pkg/attachments"
	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
	"github.com/Kitoverdie1/uph-mem-system/pkg/config"
	"github.com/Kitoverdie1/uph-mem-system/pkg/database"
	"github.com/Kitoverdie1/uph-mem-system/pkg/docstore"
	"github.com/Kitoverdie1/uph-mem-system/pkg/ha"
	"github.com/Kitoverdie1/uph-mem-system/pkg/history"
	"github.com/Kitoverdie1/uph-mem-system/pkg/service"
)

// runtime holds the connections opened for one command.
type runtime struct {
	store    docstore.Store
	recorder *history.Recorder
	closers  []func() error
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

// openRuntime opens the registry store and, when configured, the git
// change log.
func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{}
	store, err := openStore(ctx, cfg, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = store

	if cfg.Store.HistoryDir != "" {
		rec, err := history.Open(cfg.Store.HistoryDir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.recorder = rec
	}
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config, rt *runtime) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		return docstore.NewFileStore(cfg.Store.Path,
			docstore.WithHistoryLimit(cfg.Store.HistoryLimit),
			docstore.WithFileLogger(logger),
		)

	case config.BackendRedis:
		store, err := docstore.NewRedisStore(cfg.Store.RedisURL, cfg.Store.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		return store, nil

	default:
		db, err := database.Open(cfg.Store.Backend, cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { return database.Close(db) })
		store := docstore.NewGormStore(db, cfg.Store.Key)
		if err := ha.Migrate(ctx, db, migrationConfig(cfg), store.AutoMigrate); err != nil {
			return nil, fmt.Errorf("failed to migrate registry table: %w", err)
		}
		return store, nil
	}
}

// newService builds the registry service over rt. Extra options follow the
// defaults.
func newService(rt *runtime, opts ...service.Option) *service.Service {
	base := []service.Option{service.WithLogger(logger)}
	if rt.recorder != nil {
		base = append(base, service.WithHistory(rt.recorder))
	}
	return service.New(rt.store, append(base, opts...)...)
}

// openJobDatabase opens the database holding import jobs and audit events.
func openJobDatabase(cfg *config.Config) (*gorm.DB, error) {
	driver, dsn := cfg.DatabaseDSN()
	return database.Open(driver, dsn, logger)
}

func migrationConfig(cfg *config.Config) ha.Config {
	hc := ha.ConfigFromEnv()
	hc.MigrationLockEnabled = cfg.MigrationLock
	return hc
}

func openAttachments(ctx context.Context, cfg *config.Config) (attachments.Storage, error) {
	switch cfg.Attachments.Backend {
	case "minio":
		return attachments.NewMinioStorage(ctx, cfg.Attachments.Minio.MinioConfig())
	default:
		if err := os.MkdirAll(cfg.Attachments.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create attachments dir: %w", err)
		}
		return attachments.NewLocalStorage(cfg.Attachments.Dir)
	}
}

// identityMiddleware resolves callers from proxy headers or bearer tokens.
func identityMiddleware(cfg *config.Config, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	auth := cfg.Server.Auth
	switch authz.IdentityMode(auth.Mode) {
	case authz.IdentityModeJWT:
		jwtCfg := auth.JWTConfig(log)
		log.Info("using JWT auth",
			"roleClaim", jwtCfg.RoleClaim,
			"adminRole", jwtCfg.AdminRoleValue,
			"hasPublicKey", jwtCfg.PublicKeyPath != "")
		return authz.NewJWTIdentityMiddleware(jwtCfg)
	default:
		log.Info("using header auth (X-Remote-User)", "privilegedGroups", auth.PrivilegedGroups)
		return authz.HeaderIdentityMiddleware(auth.PrivilegedGroups), nil
	}
}
