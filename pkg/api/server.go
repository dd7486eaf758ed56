// Package api serves the registry over HTTP. Routes follow the layout the
// registry web client already speaks: JSON objects carrying an "ok" flag,
// multipart uploads for spreadsheets and attachments, and xlsx downloads.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kitoverdie1/uph-mem-system/pkg/attachments"
	"github.com/Kitoverdie1/uph-mem-system/pkg/audit"
	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
	"github.com/Kitoverdie1/uph-mem-system/pkg/cache"
	"github.com/Kitoverdie1/uph-mem-system/pkg/history"
	"github.com/Kitoverdie1/uph-mem-system/pkg/jobs"
	"github.com/Kitoverdie1/uph-mem-system/pkg/service"
)

// DefaultMaxUploadBytes caps spreadsheet, backup and attachment uploads.
const DefaultMaxUploadBytes = 25 << 20

// Config holds the HTTP settings of the API.
type Config struct {
	// CORSOrigins lists the origins allowed to call the API from a browser.
	CORSOrigins []string
	// MaxUploadBytes caps the size of a request body carrying an upload.
	MaxUploadBytes int64
	// PublicBaseURL prefixes attachment links in exported workbooks. When
	// empty it is derived from the request.
	PublicBaseURL string
	// SpoolDir keeps uploads handed to the import job queue.
	SpoolDir string
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		CORSOrigins:    []string{"https://*", "http://*"},
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// HistoryLog lists recorded document versions. history.Recorder satisfies it.
type HistoryLog interface {
	Log(limit int) ([]history.Commit, error)
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Server routes HTTP requests to the registry service.
type Server struct {
	svc   *service.Service
	files attachments.Storage
	cfg   Config

	logger     *slog.Logger
	authorizer authz.Authorizer
	identity   func(http.Handler) http.Handler
	cache      *cache.CacheManager
	history    HistoryLog
	jobs       *jobs.JobStore
	auditStore *audit.Store
	auditCfg   *audit.AuditConfig
	metrics    http.Handler
	checks     map[string]ReadyCheck

	now       func() time.Time
	startedAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the HTTP settings.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAuthorizer replaces the role authorizer.
func WithAuthorizer(a authz.Authorizer) Option {
	return func(s *Server) { s.authorizer = a }
}

// WithIdentity sets the middleware that resolves the caller. The default
// trusts X-Remote-* headers and grants no privilege.
func WithIdentity(mw func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.identity = mw }
}

// WithCache caches read responses until the next registry write.
func WithCache(cm *cache.CacheManager) Option {
	return func(s *Server) { s.cache = cm }
}

// WithHistory exposes the document change log at /api/history.
func WithHistory(h HistoryLog) Option {
	return func(s *Server) { s.history = h }
}

// WithJobs mounts the import job API and enables queued imports.
func WithJobs(store *jobs.JobStore) Option {
	return func(s *Server) { s.jobs = store }
}

// WithAudit records mutating requests and mounts the audit API.
func WithAudit(store *audit.Store, cfg *audit.AuditConfig) Option {
	return func(s *Server) {
		s.auditStore = store
		s.auditCfg = cfg
	}
}

// WithMetricsHandler replaces the /metrics handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithReadyCheck adds a named check to /readyz.
func WithReadyCheck(name string, check ReadyCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithClock overrides the time source used for reports.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server for svc storing attachments in files.
func New(svc *service.Service, files attachments.Storage, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		files:  files,
		cfg:    DefaultConfig(),
		checks: make(map[string]ReadyCheck),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.authorizer == nil {
		s.authorizer = authz.NewRoleAuthorizer(nil)
	}
	if s.identity == nil {
		s.identity = authz.HeaderIdentityMiddleware(nil)
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}
	if s.cfg.MaxUploadBytes <= 0 {
		s.cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if _, ok := s.checks["registry"]; !ok {
		s.checks["registry"] = func(ctx context.Context) error {
			_, err := svc.Meta(ctx)
			return err
		}
	}
	s.startedAt = s.now()
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Remote-User", "X-Remote-Name", "X-Remote-Group"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Cache"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler)
	r.Get("/livez", s.healthHandler)
	r.Get("/readyz", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Group(func(r chi.Router) {
		r.Use(s.identity)
		if s.auditStore != nil && s.auditCfg != nil && s.auditCfg.Enabled {
			r.Use(audit.AuditMiddleware(s.auditStore, s.auditCfg, s.logger))
			s.logger.Info("audit middleware enabled",
				"logDenied", s.auditCfg.LogDenied,
				"retentionDays", s.auditCfg.RetentionDays)
		}
		r.Use(authz.AuthzMiddleware(s.authorizer))

		r.Get("/assets/{kind}/{name}", s.serveAttachment)
		r.Route("/api", s.apiRoutes)
	})

	return r
}

func (s *Server) apiRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.cache.Middleware())
		r.Get("/meta", s.getMeta)
		r.Get("/assets", s.listAssets)
		r.Get("/assets/by-code/{code}", s.getAssetByCode)
		r.Get("/calibration", s.listCalibration)
		r.Get("/reports/summary", s.getSummary)
	})

	r.Get("/me", s.getMe)
	r.Get("/next-code", s.nextCode)

	r.Post("/assets", s.createAsset)
	r.Put("/assets/by-code/{code}", s.updateAssetByCode)
	r.Post("/assets/by-code/{code}:confirm", s.confirmRepair)
	r.Post("/assets/by-code/{code}:reject", s.rejectRepair)
	r.Put("/assets/{id}", s.updateAsset)
	r.Delete("/assets/{id}", s.deleteAsset)
	r.Post("/assets/{id}/image", s.uploadImage)

	r.Post("/calibration", s.createCalibration)
	r.Post("/calibration/import", s.importCalibration)
	r.Get("/calibration/export/excel", s.exportCalibration)
	r.Put("/calibration/{id}", s.updateCalibration)
	r.Delete("/calibration/{id}", s.deleteCalibration)
	r.Post("/calibration/{id}/file", s.attachCalibrationFile)
	r.Delete("/calibration/{id}/file", s.clearCalibrationFile)

	r.Post("/import/excel", s.importAssets)
	r.Get("/export/excel", s.exportAssets)
	r.Get("/reports/export/excel", s.exportReports)
	r.Get("/export/db", s.exportBackup)
	r.Post("/import/db", s.restoreBackup)

	r.Get("/history", s.listHistory)

	if s.jobs != nil {
		r.Mount("/jobs", jobs.Router(s.jobs, nil))
	}
	if s.auditStore != nil {
		r.Mount("/audit", audit.Router(s.auditStore, nil))
	}
}
