package cli

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/config"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("INPROXY_TEST_ENV", "custom-value")

	if got := getEnvString("INPROXY_TEST_ENV", "default"); got != "custom-value" {
		t.Fatalf("expected env override, got %s", got)
	}

	if got := getEnvString("INPROXY_UNKNOWN_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("INPROXY_BOOL_TRUE", "true")
	if !getEnvBool("INPROXY_BOOL_TRUE", false) {
		t.Fatal("expected true when env variable explicitly true")
	}

	t.Setenv("INPROXY_BOOL_ONE", "1")
	if !getEnvBool("INPROXY_BOOL_ONE", false) {
		t.Fatal("expected true for numeric string 1")
	}

	t.Setenv("INPROXY_BOOL_FALSE", "false")
	if getEnvBool("INPROXY_BOOL_FALSE", true) {
		t.Fatal("expected false when env variable explicitly false")
	}

	t.Setenv("INPROXY_BOOL_INVALID", "sometimes")
	if !getEnvBool("INPROXY_BOOL_INVALID", true) {
		t.Fatal("expected fallback default when env value invalid")
	}

	if getEnvBool("INPROXY_BOOL_MISSING", false) {
		t.Fatal("expected default false when env missing")
	}
}

func TestGetEnvBool_AllTrueVariants(t *testing.T) {
	trueValues := []string{"true", "TRUE", "True", "1", "yes", "YES", "Yes"}
	for _, val := range trueValues {
		t.Run(val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", val)
			assert.True(t, getEnvBool("TEST_BOOL", false), "expected true for %q", val)
		})
	}
}

func TestGetEnvBool_AllFalseVariants(t *testing.T) {
	falseValues := []string{"false", "FALSE", "False", "0", "no", "NO", "No"}
	for _, val := range falseValues {
		t.Run(val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", val)
			assert.False(t, getEnvBool("TEST_BOOL", true), "expected false for %q", val)
		})
	}
}

func TestDisableHTTP2(t *testing.T) {
	cfg := &tls.Config{NextProtos: []string{"h2", "http/1.1"}}
	DisableHTTP2(cfg)

	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != "http/1.1" {
		t.Fatalf("expected HTTP/1.1 only, got %v", cfg.NextProtos)
	}
}

func TestDisableHTTP2_EmptyConfig(t *testing.T) {
	cfg := &tls.Config{}
	DisableHTTP2(cfg)

	assert.Len(t, cfg.NextProtos, 1)
	assert.Equal(t, "http/1.1", cfg.NextProtos[0])
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		defaultVal  time.Duration
		expected    time.Duration
		expectError bool
	}{
		{
			name:       "valid duration 10m",
			value:      "10m",
			defaultVal: 5 * time.Minute,
			expected:   10 * time.Minute,
		},
		{
			name:       "valid duration 1h",
			value:      "1h",
			defaultVal: 5 * time.Minute,
			expected:   1 * time.Hour,
		},
		{
			name:       "valid duration 30s",
			value:      "30s",
			defaultVal: 5 * time.Minute,
			expected:   30 * time.Second,
		},
		{
			name:       "empty value uses default",
			value:      "",
			defaultVal: 5 * time.Minute,
			expected:   5 * time.Minute,
		},
		{
			name:        "invalid duration uses default",
			value:       "invalid",
			defaultVal:  5 * time.Minute,
			expected:    5 * time.Minute,
			expectError: true,
		},
		{
			name:        "numeric without unit uses default",
			value:       "100",
			defaultVal:  5 * time.Minute,
			expected:    5 * time.Minute,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDuration("test-flag", tt.value, tt.defaultVal)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRegisterDefaults(t *testing.T) {
	c := Register(&cobra.Command{Use: "test"})

	assert.False(t, c.Debug)
	assert.Equal(t, config.DefaultPath, c.ConfigPath)
	assert.Empty(t, c.ListenAddress)
	assert.False(t, c.EnableHTTP2)
}

func TestRegisterEnvFallbacks(t *testing.T) {
	t.Setenv("INPROXY_DEBUG", "yes")
	t.Setenv("INPROXY_CONFIG_PATH", "/etc/inproxy/config.yaml")
	t.Setenv("INPROXY_LISTEN_ADDRESS", ":9000")

	c := Register(&cobra.Command{Use: "test"})

	assert.True(t, c.Debug)
	assert.Equal(t, "/etc/inproxy/config.yaml", c.ConfigPath)
	assert.Equal(t, ":9000", c.ListenAddress)
}

func TestRegisterFlagsOverrideEnv(t *testing.T) {
	t.Setenv("INPROXY_LISTEN_ADDRESS", ":9000")
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	c := Register(cmd)

	cmd.SetArgs([]string{"--listen-address", ":7000", "--debug"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, ":7000", c.ListenAddress)
	assert.True(t, c.Debug)
}

func TestApplyTo(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	cfg := config.Default()
	(&Config{ListenAddress: ":7000", ShutdownTimeout: "3s"}).ApplyTo(&cfg, logger)
	assert.Equal(t, ":7000", cfg.Server.ListenAddress)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)

	cfg = config.Default()
	(&Config{ShutdownTimeout: "soon"}).ApplyTo(&cfg, logger)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestConfig_Print(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	config := &Config{
		Debug:         true,
		ConfigPath:    "./config.yaml",
		ListenAddress: ":8080",
		EnableHTTP2:   false,
	}

	// This should not panic
	config.Print(logger)
}
