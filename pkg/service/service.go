// Package service is the registry facade used by the HTTP API, the CLI and
// the import workers. It serializes every load-mutate-save cycle so that
// concurrent requests never lose each other's updates.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Kitoverdie1/uph-mem-system/pkg/cache"
	"github.com/Kitoverdie1/uph-mem-system/pkg/docstore"
	"github.com/Kitoverdie1/uph-mem-system/pkg/metrics"
	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// Recorder receives the persisted document after each successful save.
// history.Recorder satisfies it.
type Recorder interface {
	Record(data []byte, author, message string) (string, error)
}

// Service runs registry operations against a document store.
type Service struct {
	store   docstore.Store
	mu      sync.Mutex
	logger  *slog.Logger
	metrics *metrics.Metrics
	history Recorder

	summaries *cache.LRUCache[*Summary]
	onChange  []func()
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records saves, imports, repair moves and cache lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHistory commits every saved document through r.
func WithHistory(r Recorder) Option {
	return func(s *Service) { s.history = r }
}

// WithCache enables the report summary cache when cfg is enabled.
func WithCache(cfg *cache.CacheConfig) Option {
	return func(s *Service) {
		if cfg == nil || !cfg.Enabled {
			s.summaries = nil
			return
		}
		s.summaries = cache.NewLRUCache[*Summary](cfg.MaxSize, cfg.SummaryTTL)
	}
}

// WithChangeHook runs fn after every successful save.
func WithChangeHook(fn func()) Option {
	return func(s *Service) { s.onChange = append(s.onChange, fn) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over store.
func New(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Store returns the underlying document store.
func (s *Service) Store() docstore.Store { return s.store }

// view loads the current document for a read-only operation.
func (s *Service) view(ctx context.Context) (*registry.Document, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load registry: %w", err)
	}
	return doc, nil
}

// mutate loads the document, applies fn and saves the result. Nothing is
// saved when fn fails.
func (s *Service) mutate(ctx context.Context, author, message string, fn func(doc *registry.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.view(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.saveLocked(ctx, doc, author, message)
}

// saveLocked persists doc and runs the post-save hooks. s.mu must be held.
func (s *Service) saveLocked(ctx context.Context, doc *registry.Document, author, message string) error {
	start := time.Now()
	err := s.store.Save(ctx, doc)
	s.metrics.ObserveSave(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("service: failed to save registry: %w", err)
	}

	s.logger.Info("registry saved", "author", author, "change", message, "revision", shortRevision(doc.Revision))
	s.record(ctx, author, message)
	for _, fn := range s.onChange {
		fn()
	}
	return nil
}

func (s *Service) record(ctx context.Context, author, message string) {
	if s.history == nil {
		return
	}
	data, err := s.store.Raw(ctx)
	if err != nil {
		s.logger.Error("history: failed to read saved document", "error", err)
		return
	}
	hash, err := s.history.Record(data, author, message)
	if err != nil {
		s.logger.Error("history: failed to record change", "change", message, "error", err)
		return
	}
	if hash != "" {
		s.logger.Debug("history: recorded change", "commit", hash)
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
