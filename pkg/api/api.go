package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/accesslog"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/cli"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/config"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/filter"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/health"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/wellknown"
)

const readHeaderTimeout = 10 * time.Second

type Options struct {
	Allowlist filter.AllowlistChecker
	Health    *health.Registry
	// Cache stores well-known responses. Nil disables caching.
	Cache wellknown.Backend
	// Transport is used for upstream requests. Nil means a clone of http.DefaultTransport.
	Transport   http.RoundTripper
	EnableHTTP2 bool
}

type Server struct {
	log        *zap.SugaredLogger
	config     config.Config
	gin        *gin.Engine
	health     *health.Registry
	httpServer *http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool, opts Options) (*Server, error) {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Allowlist == nil {
		return nil, errors.New("allowlist is required")
	}
	if opts.Health == nil {
		opts.Health = health.NewRegistry()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	engine := gin.New()
	// Paths are forwarded as received.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid server.trustedProxies: %w", err)
	}

	engine.Use(accesslog.Middlewares(log, cfg.Server.AccessLog, HealthPath, ReadinessPath, MetricsPath)...)
	engine.Use(
		system.RequestLogger(log.Sugar()),
		filter.QueryEncodingNormalizer(),
	)

	s := &Server{
		log:    log.Sugar(),
		config: cfg,
		gin:    engine,
		health: opts.Health,
	}
	if err := s.registerRoutes(opts); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(log),
	}
	if cfg.Server.TLSCertFile != "" && !opts.EnableHTTP2 {
		s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		cli.DisableHTTP2(s.httpServer.TLSConfig)
		s.httpServer.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}
	}
	return s, nil
}

// Handler returns the gin engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Run serves until ctx is cancelled or the listener fails, then shuts the
// server down within server.shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		tlsEnabled := s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != ""
		s.log.Infow("Starting inproxy server", "address", s.httpServer.Addr, "tls", tlsEnabled)

		var err error
		if tlsEnabled {
			err = s.httpServer.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutdown requested")
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Only the first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.log.Infow("Initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Errorw("Error during server shutdown", "error", err)
			s.shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			return
		}
		s.log.Info("Server stopped")
	})
	return s.shutdownErr
}

func parseUpstream(name, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s upstream %q: %w", name, raw, err)
	}
	return u, nil
}
