package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-pkce/internal/config"
)

var (
	v = config.NewViper()

	verbose    bool
	configFile string
	envFiles   []string

	// cfg is loaded in PersistentPreRunE before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "oauth-pkce",
	Short:         "OAuth 2.1 authorization code flow with PKCE",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFiles(envFiles...); err != nil {
			return err
		}

		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded

		slog.SetDefault(newLogger(cfg.Log, verbose))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&configFile, "config-file", "f", "", "YAML config file")
	flags.StringSliceVar(&envFiles, "env-file", []string{".env"}, "env files to load before reading the environment")
	flags.String("log-format", "text", "log format (json or text)")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(authServerCmd, clientCmd, secretHashCmd)
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.Log, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.Level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
