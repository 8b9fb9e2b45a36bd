package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
	ReqLoggerKey = "reqLogger"
	// ClientIDKey holds the client id resolved by the token request guard.
	ClientIDKey = "clientId"
	// RequestIDHeader is echoed back to the caller and forwarded upstream.
	RequestIDHeader = "X-Request-Id"
)

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// RequestLogger stores a request-scoped logger carrying the request id, method
// and path. An incoming X-Request-Id is reused, otherwise a new one is generated.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, requestID)
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(ReqLoggerKey, log.With("requestId", requestID, "method", c.Request.Method, "path", c.Request.URL.Path))
		c.Next()
	}
}

// EnrichReqLoggerWithClientID annotates the request-scoped logger with the
// resolved client id, if any, and stores it back in the context.
func EnrichReqLoggerWithClientID(c *gin.Context, reqLogger *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil || reqLogger == nil {
		return reqLogger
	}
	if clientID := c.GetString(ClientIDKey); clientID != "" {
		reqLogger = reqLogger.With("clientId", clientID)
		c.Set(ReqLoggerKey, reqLogger)
	}
	return reqLogger
}
