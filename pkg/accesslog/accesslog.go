// Package accesslog provides the structured access log and panic recovery
// middlewares of the proxy.
package accesslog

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/filter"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
)

// Placeholder written when no client id was resolved for the request.
const noClientID = "-"

// Middlewares returns recovery and, when enabled, the access log.
// Recovery is registered first so panics from later handlers are logged too.
func Middlewares(log *zap.Logger, enabled bool, skipPaths ...string) []gin.HandlerFunc {
	handlers := []gin.HandlerFunc{ginzap.RecoveryWithZap(log, true)}
	if enabled {
		handlers = append(handlers, Logger(log, skipPaths...))
	}
	return handlers
}

// Logger writes one entry per request, attributing it to the resolved client id.
func Logger(log *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  skipPaths,
		Context:    fields,
	})
}

func fields(c *gin.Context) []zapcore.Field {
	return []zapcore.Field{
		zap.String("client_id", ClientID(c)),
		zap.String("proto", c.Request.Proto),
		zap.Int("bytes", c.Writer.Size()),
	}
}

// ClientID returns the client id stamped by the token request guard, "-" when
// the request never passed the guard.
func ClientID(c *gin.Context) string {
	if v, ok := c.Get(system.ClientIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if v := c.Request.Header.Get(filter.ClientIDHeader); v != "" {
		return v
	}
	return noClientID
}
