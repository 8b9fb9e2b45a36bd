package cli

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/config"
)

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string

	// Server overrides; empty values keep the configuration file's settings.
	ListenAddress   string
	ShutdownTimeout string
	EnableHTTP2     bool
}

// Register binds the flags to cmd's persistent flag set.
// The pattern: flags.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
func Register(cmd *cobra.Command) *Config {
	c := &Config{}
	flags := cmd.PersistentFlags()
	flags.BoolVar(&c.Debug, "debug", getEnvBool("INPROXY_DEBUG", false), "Enable debug level logging")
	flags.StringVar(&c.ConfigPath, "config", getEnvString("INPROXY_CONFIG_PATH", config.DefaultPath),
		"Path to the inproxy configuration file")
	flags.StringVar(&c.ListenAddress, "listen-address", getEnvString("INPROXY_LISTEN_ADDRESS", ""),
		"The address the proxy binds to (host:port), overrides server.listenAddress")
	flags.StringVar(&c.ShutdownTimeout, "shutdown-timeout", getEnvString("INPROXY_SHUTDOWN_TIMEOUT", ""),
		"How long to wait for in-flight requests on shutdown (e.g., '10s'), overrides server.shutdownTimeout")
	flags.BoolVar(&c.EnableHTTP2, "enable-http2", getEnvBool("INPROXY_ENABLE_HTTP2", false),
		"If set, HTTP/2 will be negotiated on the TLS listener")
	return c
}

// ApplyTo overrides cfg with the values given on the command line.
func (c *Config) ApplyTo(cfg *config.Config, log *zap.SugaredLogger) {
	if c.ListenAddress != "" {
		cfg.Server.ListenAddress = c.ListenAddress
	}
	timeout, err := parseDuration("shutdown-timeout", c.ShutdownTimeout, cfg.Server.ShutdownTimeout)
	if err != nil {
		log.Warn(err)
	}
	cfg.Server.ShutdownTimeout = timeout
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"listen_address", c.ListenAddress,
		"shutdown_timeout", c.ShutdownTimeout,
		"enable_http2", c.EnableHTTP2,
	)
}

// DisableHTTP2 is used to configure TLS options to disable HTTP/2.
// This is important because HTTP/2 has known vulnerabilities (CVE-2023-44487, CVE-2024-3156).
func DisableHTTP2(c *tls.Config) {
	c.NextProtos = []string{"http/1.1"}
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			duration = d
		} else {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
	}

	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
