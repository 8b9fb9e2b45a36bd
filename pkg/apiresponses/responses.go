package apiresponses

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/query"
)

// OAuth2 error codes used by the filters.
const (
	ErrorInvalidGrant       = "invalid_grant"
	ErrorUnauthorizedClient = "unauthorized_client"
	ErrorInvalidRequest     = "invalid_request"
	ErrorServerError        = "server_error"
)

// ErrorPagePath is where browser-facing errors are redirected to.
const ErrorPagePath = "/error/oidc"

// OAuthError is an OAuth2 error response body with its HTTP status.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Status      int    `json:"-"`
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}

// NewOAuthError builds a 400 OAuthError.
func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: http.StatusBadRequest}
}

// clearHeaders drops every header already set on the response.
func clearHeaders(c *gin.Context) {
	h := c.Writer.Header()
	for k := range h {
		delete(h, k)
	}
}

// RespondOAuthError replaces any response headers, writes e as JSON with
// no-store caching and aborts the chain.
func RespondOAuthError(c *gin.Context, e *OAuthError) {
	clearHeaders(c)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	status := e.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	body, _ := json.Marshal(e)
	c.Abort()
	c.Data(status, "application/json", body)
}

// ErrorPageLocation returns the error page URL carrying code and description
// as query parameters.
func ErrorPageLocation(code, description string) string {
	return ErrorPagePath + "?error=" + query.EscapeUnreserved(code) +
		"&error_description=" + query.EscapeUnreserved(description)
}

// RedirectOAuthError replaces any response headers with a 302 redirect to
// the error page and aborts the chain.
func RedirectOAuthError(c *gin.Context, e *OAuthError) {
	clearHeaders(c)
	c.Header("Cache-Control", "private, no-cache, no-store, must-revalidate")
	c.Header("Location", ErrorPageLocation(e.Code, e.Description))
	c.AbortWithStatus(http.StatusFound)
}

// RespondInternalError sends a 500 server_error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	RespondOAuthError(c, &OAuthError{
		Code:        ErrorServerError,
		Description: "The authorization server encountered an unexpected condition that prevented it from fulfilling the request.",
		Status:      http.StatusInternalServerError,
	})
}

// RespondNotFoundSimple sends a 404 with a plain message.
func RespondNotFoundSimple(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": message})
}

// RespondPayloadTooLarge sends a 413 for request bodies above the buffering limit.
func RespondPayloadTooLarge(c *gin.Context, limit int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("request body exceeds %d bytes", limit),
	})
}
