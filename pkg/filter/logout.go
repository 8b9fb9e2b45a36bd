package filter

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/apiresponses"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/metrics"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/query"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
)

const (
	idTokenHintParam      = "id_token_hint"
	representeeListClaim  = "representee_list"
	multipleHintsMessage  = "Multiple 'id_token_hint' query parameters found"
	hintInPostMessage     = "The 'id_token_hint' query parameter is not allowed when using logout request with http POST method, it must be passed as a form parameter"
	invalidJWSMessage     = "The 'id_token_hint' query parameter value is not a valid JWS"
	representeeGetMessage = "Logout request must use POST method if the id token from 'id_token_hint' parameter contains a 'representee_list' claim"
)

// ErrAudienceShape marks an id token whose audience is not exactly one string.
// Tokens come from a trusted issuer, so this is a server fault, not a client error.
var ErrAudienceShape = errors.New("can not determine client ID")

// LogoutClaims is the part of an id_token_hint the validator looks at.
type LogoutClaims struct {
	Audience           string
	HasRepresenteeList bool
}

// ParseLogoutClaims reads the claims of a compact JWS WITHOUT verifying its
// signature. The result must only be used to validate the shape of a logout
// request, never for authorization.
func ParseLogoutClaims(token string) (LogoutClaims, bool, error) {
	claims := jwt.MapClaims{}
	if parsed, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil && !unknownAlgorithm(parsed, err) {
		return LogoutClaims{}, false, err
	}
	if v, ok := claims[representeeListClaim]; !ok || v == nil {
		return LogoutClaims{}, false, nil
	}
	audience, err := singleAudience(claims["aud"])
	if err != nil {
		return LogoutClaims{HasRepresenteeList: true}, true, err
	}
	return LogoutClaims{Audience: audience, HasRepresenteeList: true}, true, nil
}

// unknownAlgorithm reports whether ParseUnverified decoded the token and only
// failed because its alg is not one the jwt package registers.
func unknownAlgorithm(token *jwt.Token, err error) bool {
	var ve *jwt.ValidationError
	if token == nil || !errors.As(err, &ve) || ve.Errors != jwt.ValidationErrorUnverifiable {
		return false
	}
	alg, _ := token.Header["alg"].(string)
	return alg != ""
}

func singleAudience(aud interface{}) (string, error) {
	var values []string
	switch v := aud.(type) {
	case nil:
	case string:
		values = []string{v}
	case []interface{}:
		for _, a := range v {
			s, ok := a.(string)
			if !ok {
				return "", fmt.Errorf("%w, audience claim contains a non-string value", ErrAudienceShape)
			}
			values = append(values, s)
		}
	default:
		return "", fmt.Errorf("%w, audience claim has type %T", ErrAudienceShape, aud)
	}
	switch len(values) {
	case 0:
		return "", fmt.Errorf("%w, no audience provided", ErrAudienceShape)
	case 1:
		return values[0], nil
	default:
		return "", fmt.Errorf("%w, multiple audience claim values found", ErrAudienceShape)
	}
}

// LogoutClaimValidator rejects logout requests that pass an id_token_hint in
// the query of a POST, or that use GET with an id token carrying a
// representee_list claim. Clients listed in allowedClientIDs keep the GET form.
type LogoutClaimValidator struct {
	log              *zap.SugaredLogger
	allowedClientIDs []string
}

func NewLogoutClaimValidator(log *zap.SugaredLogger, allowedClientIDs []string) *LogoutClaimValidator {
	return &LogoutClaimValidator{log: log, allowedClientIDs: slices.Clone(allowedClientIDs)}
}

func (v *LogoutClaimValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := system.GetReqLogger(c, v.log)

		hints := query.All(c.Request.URL.RawQuery, idTokenHintParam)
		if len(hints) == 0 {
			c.Next()
			return
		}
		if len(hints) > 1 {
			v.reject(c, "multiple_hints", multipleHintsMessage)
			return
		}
		// A bare id_token_hint carries no token to inspect.
		if !hints[0].HasValue {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodPost:
			v.reject(c, "hint_in_post_query", hintInPostMessage)
			return
		case http.MethodGet:
			claims, found, err := ParseLogoutClaims(hints[0].DecodedValue())
			switch {
			case errors.Is(err, ErrAudienceShape):
				metrics.LogoutValidationFailures.WithLabelValues("audience_shape").Inc()
				apiresponses.RespondInternalError(c, "determine logout client ID", err, log)
				return
			case err != nil:
				log.Debugw("Invalid id_token_hint", "error", err)
				v.reject(c, "invalid_jws", invalidJWSMessage)
				return
			case found && !slices.Contains(v.allowedClientIDs, claims.Audience):
				v.reject(c, "representee_list_get", representeeGetMessage)
				return
			}
		}
		c.Next()
	}
}

func (v *LogoutClaimValidator) reject(c *gin.Context, reason, description string) {
	metrics.LogoutValidationFailures.WithLabelValues(reason).Inc()
	system.GetReqLogger(c, v.log).Infow("Logout request rejected", "reason", reason)
	apiresponses.RedirectOAuthError(c, apiresponses.NewOAuthError(apiresponses.ErrorInvalidRequest, description))
}
