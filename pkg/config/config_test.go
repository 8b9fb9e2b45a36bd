package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/config"
)

const minimal = `
upstream:
  hydraURL: "http://hydra:4444"
admin:
  baseURL: "https://admin:8443"
  storagePath: "/var/lib/inproxy/allowlist.json"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectError bool
		check       func(t *testing.T, cfg config.Config)
	}{
		{
			name:    "minimal config gets defaults",
			content: minimal,
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, ":8080", cfg.Server.ListenAddress)
				assert.True(t, cfg.Server.AccessLog)
				assert.Equal(t, 60*time.Second, cfg.Admin.RefreshInterval())
				assert.Equal(t, config.BackendMemory, cfg.WellKnown.Backend)
				assert.Equal(t, time.Minute, cfg.WellKnown.TimeToLive)
				assert.Equal(t, []string{"/.well-known/openid-configuration", "/.well-known/jwks.json"}, cfg.WellKnown.Paths)
				assert.Equal(t, "/oauth2/token", cfg.Routes.Token)
				assert.Equal(t, "/oauth2/sessions/logout", cfg.Routes.Logout)
				assert.False(t, cfg.TokenRequest.BlockIPAddresses)
				assert.False(t, cfg.Admin.InsecureSkipVerify)
			},
		},
		{
			name: "full config",
			content: minimal + `
server:
  listenAddress: ":9443"
  trustedProxies: ["10.0.0.0/8"]
  accessLog: false
  shutdownTimeout: 30s
tokenRequest:
  blockIPAddresses: true
logout:
  representeeListQueryParamClientIDs: ["legacy-client"]
wellKnown:
  backend: redis
  timeToLive: 5m
  paths: ["/.well-known/openid-configuration"]
  redis:
    address: "redis:6379"
    db: 2
health:
  certificateFiles: ["/etc/inproxy/tls.crt"]
  certificateExpirationWarningPeriod: 168h
`,
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, ":9443", cfg.Server.ListenAddress)
				assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Server.TrustedProxies)
				assert.False(t, cfg.Server.AccessLog)
				assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
				assert.True(t, cfg.TokenRequest.BlockIPAddresses)
				assert.Equal(t, []string{"legacy-client"}, cfg.Logout.RepresenteeListQueryParamClientIDs)
				assert.Equal(t, config.BackendRedis, cfg.WellKnown.Backend)
				assert.Equal(t, 5*time.Minute, cfg.WellKnown.TimeToLive)
				assert.Equal(t, []string{"/.well-known/openid-configuration"}, cfg.WellKnown.Paths)
				assert.Equal(t, "redis:6379", cfg.WellKnown.Redis.Address)
				assert.Equal(t, 2, cfg.WellKnown.Redis.DB)
				assert.Equal(t, "inproxy:", cfg.WellKnown.Redis.KeyPrefix)
				assert.Equal(t, 168*time.Hour, cfg.Health.CertificateExpirationWarningPeriod)
			},
		},
		{
			name:        "invalid YAML",
			content:     `invalid: yaml: content [`,
			expectError: true,
		},
		{
			name:        "missing required keys",
			content:     "server:\n  listenAddress: \":8080\"\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, tt.content))
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Upstream.HydraURL = "http://hydra:4444"
		cfg.Admin.BaseURL = "https://admin:8443"
		cfg.Admin.StoragePath = "/tmp/allowlist.json"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		message string
	}{
		{name: "refresh interval below minimum", mutate: func(c *config.Config) { c.Admin.RefreshIntervalMs = 999 }, message: "admin.refreshIntervalMs"},
		{name: "relative hydra URL", mutate: func(c *config.Config) { c.Upstream.HydraURL = "hydra:4444" }, message: "upstream.hydraURL"},
		{name: "bad default URL", mutate: func(c *config.Config) { c.Upstream.DefaultURL = "ftp://files" }, message: "upstream.defaultURL"},
		{name: "missing storage path", mutate: func(c *config.Config) { c.Admin.StoragePath = " " }, message: "admin.storagePath"},
		{name: "unknown backend", mutate: func(c *config.Config) { c.WellKnown.Backend = "memcached" }, message: "wellKnown.backend"},
		{name: "redis without address", mutate: func(c *config.Config) { c.WellKnown.Backend = config.BackendRedis }, message: "wellKnown.redis.address"},
		{name: "non well-known path", mutate: func(c *config.Config) { c.WellKnown.Paths = []string{"/jwks"} }, message: "wellKnown.paths"},
		{name: "relative route", mutate: func(c *config.Config) { c.Routes.Token = "oauth2/token" }, message: "routes.token"},
		{name: "duplicate route", mutate: func(c *config.Config) { c.Routes.Authorize = c.Routes.Token }, message: "configured more than once"},
		{name: "cert without key", mutate: func(c *config.Config) { c.Server.TLSCertFile = "tls.crt" }, message: "server.tlsCertFile"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
