package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	oauth "github.com/giantswarm/oauth-pkce"
	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/storage/static"
)

var authServerCmd = &cobra.Command{
	Use:   "authserver",
	Short: "Run the authorization server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateAuthServer(); err != nil {
			return err
		}
		return runAuthServer(cmd.Context(), slog.Default())
	},
}

func init() {
	flags := authServerCmd.Flags()
	flags.StringP("addr", "a", ":3001", "address to listen on")
	flags.String("issuer", "http://localhost:3001", "base URL of the authorization server")
	flags.String("clients-file", "clients.yaml", "YAML file with the registered clients")
	flags.Int("rate-limit", 0, "requests per second per client IP (0 disables)")
	flags.Int("rate-burst", 0, "rate limit burst (defaults to the rate)")
	flags.Bool("trust-proxy", false, "trust X-Forwarded-For and X-Real-IP")
	flags.Duration("cleanup-interval", 0, "sweep expired codes and tokens at this interval (0 disables)")
	flags.Bool("telemetry", false, "enable OpenTelemetry instrumentation")

	for key, flag := range map[string]string{
		"authserver.addr":             "addr",
		"authserver.issuer":           "issuer",
		"authserver.clients_file":     "clients-file",
		"authserver.rate_limit":       "rate-limit",
		"authserver.rate_burst":       "rate-burst",
		"authserver.trust_proxy":      "trust-proxy",
		"authserver.cleanup_interval": "cleanup-interval",
		"authserver.telemetry":        "telemetry",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func runAuthServer(ctx context.Context, logger *slog.Logger) error {
	c := cfg.AuthServer

	registry, err := static.LoadFile(c.ClientsFile, logger)
	if err != nil {
		return err
	}

	var inst *instrumentation.Instrumentation
	if c.Telemetry {
		inst, err = instrumentation.New(instrumentation.Config{
			ServiceName: "oauth-pkce-authserver",
			Enabled:     true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize instrumentation: %w", err)
		}
	}

	srv, err := oauth.NewServer(registry, &oauth.Config{
		Issuer:          c.Issuer,
		CleanupInterval: c.CleanupInterval,
		RateLimit: oauth.RateLimitConfig{
			Rate:  c.RateLimit,
			Burst: c.RateBurst,
		},
		Security: oauth.SecurityConfig{
			TrustProxy:         c.TrustProxy,
			TrustedProxyCount:  c.TrustedProxyCount,
			EnableAuditLogging: c.AuditLogging,
		},
		CORS:            oauth.CORSConfig{AllowedOrigins: c.CORSOrigins},
		Instrumentation: inst,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	handler := oauth.NewHandler(srv, logger)

	logger.Info("Authorization server listening",
		"addr", c.Addr,
		"issuer", c.Issuer,
		"clients", registry.Len(),
		"rate_limit", c.RateLimit,
		"audit_logging", c.AuditLogging)

	return serve(ctx, c.Addr, handler.Routes(), logger, func(ctx context.Context) error {
		errs := []error{srv.Shutdown(ctx)}
		if inst != nil {
			errs = append(errs, inst.Shutdown(ctx))
		}
		return errors.Join(errs...)
	})
}
