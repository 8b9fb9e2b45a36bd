package wellknown

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/metrics"
)

var cacheableStatuses = []int{http.StatusOK, http.StatusPartialContent, http.StatusMovedPermanently}

// ignoredRequestHeaders are removed from a request before its cache key is
// generated and before it is forwarded.
var ignoredRequestHeaders = []string{"Authorization", "Cookie", "Cache-Control"}

// Manager generates cache keys and reads and writes entries for one route.
// Backend failures are logged and treated as misses.
type Manager struct {
	log     *zap.SugaredLogger
	backend Backend
	routeID string
}

func NewManager(log *zap.SugaredLogger, backend Backend, routeID string) *Manager {
	return &Manager{log: log, backend: backend, routeID: routeID}
}

// SanitizeRequest drops the query string and the headers that must not
// influence a discovery document.
func SanitizeRequest(req *http.Request) {
	req.URL.RawQuery = ""
	req.URL.ForceQuery = false
	req.RequestURI = req.URL.RequestURI()
	for _, h := range ignoredRequestHeaders {
		req.Header.Del(h)
	}
}

// GenerateKey derives the cache key from the method, host and path of a
// sanitized request.
func (m *Manager) GenerateKey(req *http.Request) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{req.Method, req.Host, req.URL.EscapedPath()}, "\n")))
	return m.routeID + "-well-known-cache:" + hex.EncodeToString(sum[:])
}

// Get returns the cached entry for key, or nil on a miss or backend error.
func (m *Manager) Get(ctx context.Context, key string) *Entry {
	entry, err := m.backend.Get(ctx, key)
	if err != nil {
		metrics.WellKnownCache.WithLabelValues("error").Inc()
		m.log.Warnw("Unable to read well-known response from cache", "key", key, "error", err)
		return nil
	}
	if entry == nil {
		metrics.WellKnownCache.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.WellKnownCache.WithLabelValues("hit").Inc()
	return entry
}

// Put stores a response if it is cacheable and reports whether it did.
func (m *Manager) Put(ctx context.Context, key string, status int, header http.Header, body []byte) bool {
	if !slices.Contains(cacheableStatuses, status) {
		metrics.WellKnownCache.WithLabelValues("skipped").Inc()
		m.log.Debugw("Not storing response in cache", "status", status)
		return false
	}
	if _, ok := header["Vary"]; ok {
		metrics.WellKnownCache.WithLabelValues("skipped").Inc()
		m.log.Errorw("Unexpected Vary header in response, not storing response in cache", "vary", header.Values("Vary"))
		return false
	}
	entry := &Entry{Status: status, Header: header.Clone(), Body: slices.Clone(body)}
	if err := m.backend.Set(ctx, key, entry); err != nil {
		metrics.WellKnownCache.WithLabelValues("error").Inc()
		m.log.Warnw("Unable to store well-known response in cache", "key", key, "error", err)
		return false
	}
	metrics.WellKnownCache.WithLabelValues("stored").Inc()
	return true
}
