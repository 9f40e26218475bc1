package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/hotspot/internal/bot"
	"github.com/haasonsaas/hotspot/internal/config"
	"github.com/haasonsaas/hotspot/internal/i18n"
	"github.com/haasonsaas/hotspot/internal/observability"
	"github.com/haasonsaas/hotspot/internal/portal"
	"github.com/haasonsaas/hotspot/internal/store"
	"github.com/haasonsaas/hotspot/internal/unifi"
)

// buildServeCmd creates the "serve" command that runs both workers.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the guest portal and the Telegram approval worker",
		Long: `Start the guest portal and the Telegram approval worker.

The two workers share nothing but the SQLite database: the portal accepts
and reports on access requests, the Telegram worker broadcasts them to
registered chats and applies decisions to the UniFi controller.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  hotspot serve

  # Start with custom config
  hotspot serve --config /etc/hotspot/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "hotspot.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	warnings := cfg.Normalize()

	if debug {
		cfg.Logging.Level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	for _, warning := range warnings {
		logger.Warn(warning)
	}

	translator, err := i18n.New(cfg.Locale)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	if translator.DefaultLocale() != cfg.Locale {
		logger.Warn("unsupported locale, falling back",
			"configured", cfg.Locale, "using", translator.DefaultLocale())
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	metrics, registry := observability.NewMetrics()

	controller, err := unifi.NewController(unifi.Config{
		Address:    cfg.Unifi.Address,
		Username:   cfg.UnifiUsername,
		Password:   cfg.UnifiPassword,
		APIVersion: cfg.Unifi.APIVersion,
		Site:       cfg.Unifi.Site,
		SSLVerify:  *cfg.Unifi.SSLVerify,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("controller client: %w", err)
	}

	portalHandler, err := portal.NewHandler(portal.Config{
		Store:       st,
		Translator:  translator,
		GoOnlineURL: cfg.Portal.GoOnlineURL,
		Metrics:     metrics,
		Registry:    registry,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("portal: %w", err)
	}

	worker, err := bot.NewWorker(bot.Config{
		Token:         cfg.TelegramToken,
		Password:      cfg.BotPassword,
		AcceptOptions: cfg.AcceptOptions,
		PollInterval:  cfg.PollInterval,
		Locale:        translator.DefaultLocale(),
		Logger:        logger,
	}, st, controller, translator, metrics)
	if err != nil {
		return fmt.Errorf("telegram worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Portal.Host, cfg.Portal.Port)
	server := portal.Server(addr, portalHandler)

	errs := make(chan error, 2)
	go func() {
		logger.Info("portal listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("portal server: %w", err)
		}
	}()
	go func() {
		if err := worker.Run(ctx); err != nil {
			errs <- fmt.Errorf("telegram worker: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errs:
		stop()
		shutdownServer(server)
		return err
	}

	shutdownServer(server)
	return nil
}

func shutdownServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
