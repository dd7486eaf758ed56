package cache

import (
	"net/http"
)

// CacheManager owns the response cache for read endpoints. Every registry
// write clears it, since any change can alter any listing.
type CacheManager struct {
	responses *LRUCache[Response]
}

// NewCacheManager creates a CacheManager from the given configuration.
// If cfg is nil or disabled, it returns nil.
func NewCacheManager(cfg *CacheConfig) *CacheManager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &CacheManager{
		responses: NewLRUCache[Response](cfg.MaxSize, cfg.ResponseTTL),
	}
}

// InvalidateAll clears the response cache.
func (cm *CacheManager) InvalidateAll() {
	if cm == nil {
		return
	}
	cm.responses.InvalidateAll()
}

// Middleware returns HTTP middleware that caches read responses. A nil
// manager returns a pass-through middleware.
func (cm *CacheManager) Middleware() func(http.Handler) http.Handler {
	if cm == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return CacheMiddleware(cm.responses)
}
