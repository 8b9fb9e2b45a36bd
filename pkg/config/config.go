package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPath = "./config.yaml"

	MinRefreshIntervalMs = 1000

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs whose X-Forwarded-For is used as the source IP
	AccessLog      bool     `yaml:"accessLog"`
	// MaxRequestBodyBytes bounds the buffered token request body.
	MaxRequestBodyBytes int64         `yaml:"maxRequestBodyBytes"`
	ShutdownTimeout     time.Duration `yaml:"shutdownTimeout"`
}

type Upstream struct {
	HydraURL string `yaml:"hydraURL"`
	// DefaultURL receives every request no other route matches. Empty means 404.
	DefaultURL string `yaml:"defaultURL"`
}

type Admin struct {
	BaseURL           string `yaml:"baseURL"`
	RefreshIntervalMs int    `yaml:"refreshIntervalMs"`
	// StoragePath is the JSON file the last fetched allowlist is persisted to.
	StoragePath              string `yaml:"storagePath"`
	CertificateAuthorityFile string `yaml:"certificateAuthorityFile"`
	InsecureSkipVerify       bool   `yaml:"insecureSkipVerify"`
}

func (a Admin) RefreshInterval() time.Duration {
	return time.Duration(a.RefreshIntervalMs) * time.Millisecond
}

type TokenRequest struct {
	// BlockIPAddresses rejects token requests from sources outside the client's
	// allowlist. When false, such requests are only logged.
	BlockIPAddresses bool `yaml:"blockIPAddresses"`
}

type Logout struct {
	// RepresenteeListQueryParamClientIDs may still send representee_list claims
	// in a GET logout id_token_hint.
	RepresenteeListQueryParamClientIDs []string `yaml:"representeeListQueryParamClientIDs"`
}

type Redis struct {
	Address   string `yaml:"address"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type WellKnown struct {
	Backend    string        `yaml:"backend"`
	TimeToLive time.Duration `yaml:"timeToLive"`
	// Size caps the number of entries held by the memory backend across all paths.
	Size  int      `yaml:"size"`
	Paths []string `yaml:"paths"`
	Redis Redis    `yaml:"redis"`
}

type Routes struct {
	Token         string `yaml:"token"`
	Logout        string `yaml:"logout"`
	Authorize     string `yaml:"authorize"`
	LoginRequests string `yaml:"loginRequests"`
}

type Health struct {
	CertificateFiles                   []string      `yaml:"certificateFiles"`
	CertificateExpirationWarningPeriod time.Duration `yaml:"certificateExpirationWarningPeriod"`
}

type Config struct {
	Server       Server       `yaml:"server"`
	Upstream     Upstream     `yaml:"upstream"`
	Admin        Admin        `yaml:"admin"`
	TokenRequest TokenRequest `yaml:"tokenRequest"`
	Logout       Logout       `yaml:"logout"`
	WellKnown    WellKnown    `yaml:"wellKnown"`
	Routes       Routes       `yaml:"routes"`
	Health       Health       `yaml:"health"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		Server: Server{
			ListenAddress:       ":8080",
			AccessLog:           true,
			MaxRequestBodyBytes: 1 << 20,
			ShutdownTimeout:     10 * time.Second,
		},
		Admin: Admin{
			RefreshIntervalMs: 60000,
		},
		WellKnown: WellKnown{
			Backend:    BackendMemory,
			TimeToLive: time.Minute,
			Size:       100,
			Paths:      []string{"/.well-known/openid-configuration", "/.well-known/jwks.json"},
			Redis:      Redis{KeyPrefix: "inproxy:"},
		},
		Routes: Routes{
			Token:         "/oauth2/token",
			Logout:        "/oauth2/sessions/logout",
			Authorize:     "/oauth2/auth",
			LoginRequests: "/oauth2/auth/requests/login",
		},
		Health: Health{
			CertificateExpirationWarningPeriod: 30 * 24 * time.Hour,
		},
	}
}

// Load loads the proxy configuration from a file path and validates it.
// If configPath is empty, defaults to "./config.yaml".
func Load(configPath ...string) (Config, error) {
	path := DefaultPath
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	config := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open inproxy config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return config, config.Validate()
}

// Validate reports every problem found at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := checkURL(c.Upstream.HydraURL, true); err != nil {
		add("upstream.hydraURL: %v", err)
	}
	if err := checkURL(c.Upstream.DefaultURL, false); err != nil {
		add("upstream.defaultURL: %v", err)
	}
	if err := checkURL(c.Admin.BaseURL, true); err != nil {
		add("admin.baseURL: %v", err)
	}
	if c.Admin.RefreshIntervalMs < MinRefreshIntervalMs {
		add("admin.refreshIntervalMs must be at least %d, got %d", MinRefreshIntervalMs, c.Admin.RefreshIntervalMs)
	}
	if strings.TrimSpace(c.Admin.StoragePath) == "" {
		add("admin.storagePath is required")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		add("server.tlsCertFile and server.tlsKeyFile must be set together")
	}
	if c.Server.MaxRequestBodyBytes <= 0 {
		add("server.maxRequestBodyBytes must be positive")
	}

	switch c.WellKnown.Backend {
	case BackendMemory:
		if c.WellKnown.Size < 0 {
			add("wellKnown.size must not be negative")
		}
	case BackendRedis:
		if c.WellKnown.Redis.Address == "" {
			add("wellKnown.redis.address is required for the redis backend")
		}
	default:
		add("wellKnown.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.WellKnown.Backend)
	}
	if c.WellKnown.TimeToLive <= 0 {
		add("wellKnown.timeToLive must be positive")
	}
	for _, p := range c.WellKnown.Paths {
		if !strings.HasPrefix(p, "/.well-known/") {
			add("wellKnown.paths entry %q must start with /.well-known/", p)
		}
	}

	for name, route := range map[string]string{
		"routes.token":         c.Routes.Token,
		"routes.logout":        c.Routes.Logout,
		"routes.authorize":     c.Routes.Authorize,
		"routes.loginRequests": c.Routes.LoginRequests,
	} {
		if !strings.HasPrefix(route, "/") {
			add("%s must be an absolute path, got %q", name, route)
		}
	}

	seen := map[string]bool{}
	for _, route := range append([]string{c.Routes.Token, c.Routes.Logout, c.Routes.Authorize, c.Routes.LoginRequests}, c.WellKnown.Paths...) {
		if seen[route] {
			add("route %q is configured more than once", route)
		}
		seen[route] = true
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

func checkURL(raw string, required bool) error {
	if raw == "" {
		if required {
			return errors.New("is required")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}
