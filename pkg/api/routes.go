package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/apiresponses"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/filter"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/metrics"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/wellknown"
)

const wellKnownPrefix = "/.well-known/"

var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace,
}

// WellKnownRouteID names the cache namespace of a well-known path.
func WellKnownRouteID(path string) string {
	return "hydra-" + strings.TrimPrefix(path, wellKnownPrefix)
}

func (s *Server) registerRoutes(opts Options) error {
	hydraURL, err := parseUpstream("hydra", s.config.Upstream.HydraURL)
	if err != nil {
		return err
	}
	hydra := newUpstream(s.log, "hydra", hydraURL, opts.Transport)

	var fallback gin.HandlerFunc
	if s.config.Upstream.DefaultURL != "" {
		defaultURL, err := parseUpstream("default", s.config.Upstream.DefaultURL)
		if err != nil {
			return err
		}
		fallback = newUpstream(s.log, "default", defaultURL, opts.Transport)
	}

	routes := s.config.Routes
	tokenGuard := filter.NewTokenRequestGuard(s.log, opts.Allowlist, s.config.TokenRequest.BlockIPAddresses)
	logoutValidator := filter.NewLogoutClaimValidator(s.log, s.config.Logout.RepresenteeListQueryParamClientIDs)

	s.route(routes.Token, nil, hydra,
		filter.RequestBodyCache(s.config.Server.MaxRequestBodyBytes),
		tokenGuard.Middleware(),
	)
	s.route(routes.Logout, []string{http.MethodGet, http.MethodPost}, hydra,
		filter.TraceParentNormalizer(),
		logoutValidator.Middleware(),
	)
	s.route(routes.Authorize, []string{http.MethodGet}, hydra,
		filter.TraceParentNormalizer(),
		filter.PromptNormalizer(),
	)
	s.route(routes.LoginRequests, []string{http.MethodGet}, hydra,
		filter.TraceParentNormalizer(),
	)

	for _, path := range s.config.WellKnown.Paths {
		if opts.Cache == nil {
			s.route(path, nil, hydra)
			continue
		}
		manager := wellknown.NewManager(s.log, opts.Cache, WellKnownRouteID(path))
		s.route(path, nil, hydra, manager.Middleware())
	}

	s.gin.GET(HealthPath, s.getHealth)
	s.gin.GET(ReadinessPath, s.getHealth)
	s.gin.GET(MetricsPath, gin.WrapH(metrics.MetricsHandler()))

	s.gin.NoRoute(func(c *gin.Context) {
		if fallback == nil || strings.HasPrefix(c.Request.URL.Path, wellKnownPrefix) {
			apiresponses.RespondNotFoundSimple(c, "not found")
			return
		}
		fallback(c)
	})
	return nil
}

// route sends every method on path to upstream. Filters run only for the
// listed methods, or for all of them when methods is nil.
func (s *Server) route(path string, methods []string, upstream gin.HandlerFunc, filters ...gin.HandlerFunc) {
	chain := append(slices.Clone(filters), upstream)
	for _, m := range allMethods {
		if methods == nil || slices.Contains(methods, m) {
			s.gin.Handle(m, path, chain...)
		} else {
			s.gin.Handle(m, path, upstream)
		}
	}
}
