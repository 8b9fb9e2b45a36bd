package main

import (
	stdlog "log"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/cli"
)

// NewRootCommand returns the inproxy command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "inproxy",
		Short:         "Inbound proxy for the TARA and GovSSO OpenID Connect services",
		SilenceUsage: true,
	}
	flags := cli.Register(root)

	serve := newServeCommand(flags)
	root.RunE = serve.RunE
	root.AddCommand(serve, newVersionCommand())
	return root
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
