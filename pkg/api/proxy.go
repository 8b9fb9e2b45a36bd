package api

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
)

// newUpstream forwards requests to target. The inbound X-Forwarded-For chain
// is kept and the client address appended to it. The query string is sent
// exactly as the filters left it.
func newUpstream(log *zap.SugaredLogger, name string, target *url.URL, transport http.RoundTripper) gin.HandlerFunc {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if xff, ok := pr.In.Header["X-Forwarded-For"]; ok {
				pr.Out.Header["X-Forwarded-For"] = append([]string(nil), xff...)
			}
			pr.Out.URL.RawQuery = pr.In.URL.RawQuery
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorLog:  zap.NewStdLog(log.Desugar()),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warnw("Upstream request failed", "upstream", name, "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return func(c *gin.Context) {
		system.GetReqLogger(c, log).Debugw("Forwarding request", "upstream", name)
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}
