package filter

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/apiresponses"
)

// CachedBodyKey is the gin context key holding the buffered request body.
const CachedBodyKey = "cachedRequestBody"

// RequestBodyCache buffers the request body up to limit bytes so later
// filters can inspect it while the proxy still forwards it unchanged.
// Larger bodies are rejected with 413.
func RequestBodyCache(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Set(CachedBodyKey, []byte{})
			c.Next()
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
		_ = c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		if int64(len(body)) > limit {
			apiresponses.RespondPayloadTooLarge(c, limit)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))
		c.Request.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		c.Set(CachedBodyKey, body)
		c.Next()
	}
}

// CachedBody returns the body buffered by RequestBodyCache, or nil.
func CachedBody(c *gin.Context) []byte {
	if v, ok := c.Get(CachedBodyKey); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}
