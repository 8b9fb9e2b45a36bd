package filter

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/apiresponses"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/clientid"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/metrics"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
)

const (
	// ClientIDHeader carries the resolved client id to the access log. Upstream ignores it.
	ClientIDHeader = "X-ClientId"
	// UnknownClientID is sent in ClientIDHeader when no client id was resolved.
	UnknownClientID = "unknown"
)

const invalidGrantDescription = "The provided authorization grant is invalid."

// AllowlistChecker reports whether a client may call the token endpoint from sourceIP.
type AllowlistChecker interface {
	IsAllowed(clientID, sourceIP string) bool
}

// TokenRequestGuard enforces the per-client source IP allowlist on the token
// endpoint. With BlockIPAddresses unset, disallowed requests are only logged.
type TokenRequestGuard struct {
	log              *zap.SugaredLogger
	resolver         *clientid.Resolver
	allowlist        AllowlistChecker
	blockIPAddresses bool
}

func NewTokenRequestGuard(log *zap.SugaredLogger, allowlist AllowlistChecker, blockIPAddresses bool) *TokenRequestGuard {
	return &TokenRequestGuard{
		log:              log,
		resolver:         clientid.NewResolver(log),
		allowlist:        allowlist,
		blockIPAddresses: blockIPAddresses,
	}
}

// Middleware must run after RequestBodyCache.
func (g *TokenRequestGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := system.GetReqLogger(c, g.log)
		sourceIP := c.ClientIP()

		identity, err := g.resolver.Resolve(c.Request.Header, CachedBody(c), sourceIP)
		g.stampClientID(c, identity.ClientID)

		if err != nil || !identity.Resolved() {
			log.Debugw("Unable to resolve client id", "error", err)
			metrics.TokenRequests.WithLabelValues("invalid_grant").Inc()
			apiresponses.RespondOAuthError(c, apiresponses.NewOAuthError(apiresponses.ErrorInvalidGrant, invalidGrantDescription))
			return
		}

		log = system.EnrichReqLoggerWithClientID(c, log)
		if g.allowlist.IsAllowed(identity.ClientID, sourceIP) {
			metrics.TokenRequests.WithLabelValues("allowed").Inc()
			c.Next()
			return
		}

		description := fmt.Sprintf("IP address %s is not whitelisted for client_id \"%s\"", sourceIP, identity.ClientID)
		if g.blockIPAddresses {
			metrics.TokenRequests.WithLabelValues("denied").Inc()
			log.Infow("Token request denied", "error", apiresponses.ErrorUnauthorizedClient, "sourceIp", sourceIP)
			apiresponses.RespondOAuthError(c, apiresponses.NewOAuthError(apiresponses.ErrorUnauthorizedClient, description))
			return
		}
		metrics.TokenRequests.WithLabelValues("soft_denied").Inc()
		log.Warnf("%s - %s, allowing request", apiresponses.ErrorUnauthorizedClient, description)
		c.Next()
	}
}

func (g *TokenRequestGuard) stampClientID(c *gin.Context, clientID string) {
	if clientID == "" {
		c.Request.Header.Set(ClientIDHeader, UnknownClientID)
		return
	}
	c.Request.Header.Set(ClientIDHeader, clientID)
	c.Set(system.ClientIDKey, clientID)
}
