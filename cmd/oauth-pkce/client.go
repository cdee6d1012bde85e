package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-pkce/client"
	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/storage/memory"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run the demo client application",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateClient(); err != nil {
			return err
		}
		return runClient(cmd.Context(), slog.Default())
	},
}

func init() {
	flags := clientCmd.Flags()
	flags.StringP("addr", "a", ":3000", "address to listen on")
	flags.String("auth-server-url", "http://localhost:3001", "base URL of the authorization server")
	flags.String("client-id", "demo-client", "registered client ID")
	flags.String("client-secret", "", "client secret (prefer OAUTH_PKCE_CLIENT_CLIENT_SECRET)")
	flags.String("redirect-uri", "http://localhost:3000/callback", "registered redirect URI")
	flags.String("scope", "read", "requested scope")
	flags.Duration("http-timeout", client.DefaultHTTPTimeout, "timeout of each call to the authorization server")
	flags.Duration("cleanup-interval", 0, "sweep abandoned sessions at this interval (0 disables)")
	flags.Bool("telemetry", false, "enable OpenTelemetry instrumentation")

	for key, flag := range map[string]string{
		"client.addr":             "addr",
		"client.auth_server_url":  "auth-server-url",
		"client.client_id":        "client-id",
		"client.client_secret":    "client-secret",
		"client.redirect_uri":     "redirect-uri",
		"client.scope":            "scope",
		"client.http_timeout":     "http-timeout",
		"client.cleanup_interval": "cleanup-interval",
		"client.telemetry":        "telemetry",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func runClient(ctx context.Context, logger *slog.Logger) error {
	c := cfg.Client

	var inst *instrumentation.Instrumentation
	if c.Telemetry {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{
			ServiceName: "oauth-pkce-client",
			Enabled:     true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize instrumentation: %w", err)
		}
	}

	sessions := memory.NewWithConfig(memory.Config{
		Logger:          logger,
		CleanupInterval: c.CleanupInterval,
		SessionTTL:      c.SessionTTL,
	})
	if inst != nil {
		sessions.SetInstrumentation(inst)
	}

	flow, err := client.New(sessions, &client.Config{
		AuthServerURL:   c.AuthServerURL,
		ClientID:        c.ClientID,
		ClientSecret:    c.ClientSecret,
		RedirectURI:     c.RedirectURI,
		Scope:           c.Scope,
		HTTPTimeout:     c.HTTPTimeout,
		Instrumentation: inst,
		Logger:          logger,
	})
	if err != nil {
		sessions.Stop()
		return err
	}

	logger.Info("Client application listening",
		"addr", c.Addr,
		"auth_server", c.AuthServerURL,
		"client_id", c.ClientID)

	return serve(ctx, c.Addr, client.NewHandler(flow, logger).Routes(), logger, func(ctx context.Context) error {
		sessions.Stop()
		if inst != nil {
			return inst.Shutdown(ctx)
		}
		return nil
	})
}
