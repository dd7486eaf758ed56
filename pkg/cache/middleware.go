package cache

import (
	"bytes"
	"net/http"
)

// Response is a cached read response.
type Response struct {
	ContentType string
	Body        []byte
}

// captureWriter records the status, content type and body written by the
// wrapped handler.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CacheMiddleware caches successful GET responses in c keyed by request URI.
// Responses carry an X-Cache header of HIT or MISS. Handlers opt out by
// setting Cache-Control: no-store. A response is dropped when the cache was
// cleared while the handler ran.
func CacheMiddleware(c *LRUCache[Response]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.RequestURI()
			if cached, ok := c.Get(key); ok {
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached.Body)
				return
			}

			gen := c.Generation()
			cw := &captureWriter{ResponseWriter: w}
			cw.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(cw, r)

			if cw.status != http.StatusOK || cw.Header().Get("Cache-Control") == "no-store" {
				return
			}
			c.SetIfGeneration(key, Response{
				ContentType: cw.Header().Get("Content-Type"),
				Body:        bytes.Clone(cw.body.Bytes()),
			}, gen)
		})
	}
}
