package filter

import (
	"github.com/gin-gonic/gin"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/query"
)

const (
	promptParam       = "prompt"
	promptConsent     = "consent"
	traceParentParam  = "traceparent"
	traceParentHeader = "traceparent"
)

// QueryEncodingNormalizer re-encodes the raw query so that '=' and '&' inside
// keys and values are percent-encoded and every other byte outside the
// RFC 3986 query grammar is escaped. It must run before anything parses the
// query.
func QueryEncodingNormalizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.Request.URL.RawQuery; raw != "" {
			if normalized := query.Normalize(raw); normalized != raw {
				c.Request.URL.RawQuery = normalized
				c.Request.RequestURI = c.Request.URL.RequestURI()
			}
		}
		c.Next()
	}
}

// PromptNormalizer forces prompt=consent when the first prompt parameter
// (matched ignoring case) is missing or empty. Only that parameter is
// rewritten; the rest of the query is left byte-identical.
func PromptNormalizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Request.URL.RawQuery
		p, found := query.First(raw, promptParam)
		if !found || p.DecodedValue() == "" {
			key := promptParam
			if found {
				key = p.Key
			}
			c.Request.URL.RawQuery = query.ReplaceOrAppend(raw, key, promptConsent)
			c.Request.RequestURI = c.Request.URL.RequestURI()
		}
		c.Next()
	}
}

// TraceParentNormalizer copies a non-empty traceparent query parameter
// (matched ignoring case) into the traceparent request header.
func TraceParentNormalizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, found := query.First(c.Request.URL.RawQuery, traceParentParam); found {
			if value := p.DecodedValue(); value != "" {
				c.Request.Header.Set(traceParentHeader, value)
			}
		}
		c.Next()
	}
}
