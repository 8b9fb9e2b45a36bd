package wellknown

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
)

// maxCapturedBody bounds how much of an upstream response is buffered for caching.
const maxCapturedBody = 4 << 20

// capturingWriter tees the response body into a buffer while it is written
// to the client.
type capturingWriter struct {
	gin.ResponseWriter
	body     bytes.Buffer
	overflow bool
}

func (w *capturingWriter) capture(b []byte) {
	if w.overflow {
		return
	}
	if w.body.Len()+len(b) > maxCapturedBody {
		w.overflow = true
		w.body.Reset()
		return
	}
	w.body.Write(b)
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.capture(b[:n])
	return n, err
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	n, err := w.ResponseWriter.WriteString(s)
	w.capture([]byte(s[:n]))
	return n, err
}

// Middleware serves cached responses for GET requests and stores cacheable
// upstream responses. Requests are always sanitized; other methods pass
// through uncached.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		SanitizeRequest(c.Request)
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		c.Request.Body = http.NoBody
		c.Request.ContentLength = 0
		c.Request.Header.Del("Content-Length")

		ctx := c.Request.Context()
		key := m.GenerateKey(c.Request)
		if entry := m.Get(ctx, key); entry != nil {
			system.GetReqLogger(c, m.log).Debug("Response found in cache, returning cached response")
			serveEntry(c, entry)
			return
		}

		// Let the upstream transport negotiate compression itself so stored
		// bodies are always identity encoded.
		c.Request.Header.Del("Accept-Encoding")
		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter

		if w.overflow {
			return
		}
		header := w.Header().Clone()
		header.Del(system.RequestIDHeader)
		m.Put(ctx, key, w.Status(), header, w.body.Bytes())
	}
}

func serveEntry(c *gin.Context, entry *Entry) {
	h := c.Writer.Header()
	requestID := h.Get(system.RequestIDHeader)
	for k := range h {
		delete(h, k)
	}
	for k, v := range entry.Header {
		h[k] = append([]string(nil), v...)
	}
	if requestID != "" {
		h.Set(system.RequestIDHeader, requestID)
	}
	c.Abort()
	c.Writer.WriteHeader(entry.Status)
	_, _ = c.Writer.Write(entry.Body)
}
