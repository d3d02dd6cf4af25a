// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/sidianbank/ussd-gateway/pkg/api"
	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/crypto"
	"github.com/sidianbank/ussd-gateway/pkg/gateway"
	"github.com/sidianbank/ussd-gateway/pkg/handlers"
	"github.com/sidianbank/ussd-gateway/pkg/kvstore"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/telemetry"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
	"github.com/sidianbank/ussd-gateway/pkg/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the USSD gateway server",
	Long: `Start the gateway HTTP server. The server answers aggregator turn
requests on /api/ussd, exposes a health probe on /health, and serves
Prometheus metrics on /metrics when enabled.`,
	RunE: runServe,
}

const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides LISTEN_ADDRESS)")
	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
}

// healthChecker probes the stores backing the health endpoint.
type healthChecker struct {
	kv       kvstore.Store
	sessions *session.Store
}

func (h *healthChecker) RedisHealthy(ctx context.Context) bool   { return h.kv.Healthy(ctx) }
func (h *healthChecker) SessionHealthy(ctx context.Context) bool { return h.sessions.Healthy(ctx) }

// menuAliases maps the short handler names used in the menu definitions
// onto their module-qualified registrations.
var menuAliases = map[string]string{
	"process_pin":         "pin.processPinOrForgot",
	"process_balance":     "balance.processBalanceRequest",
	"process_balance_pin": "balance.processBalancePin",
	"process_statement":   "statement.processStatementRequest",
	"airtime_confirm":     "airtime.processAirtimeConfirmation",
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	address := viper.GetString("address")
	if address == "" {
		address = cfg.ListenAddress
	}

	kv, err := kvstore.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warnf("Closing Redis connection failed: %v", err)
		}
	}()

	sessions := session.NewStore(kv, cfg.Redis.SessionPrefix, cfg.Redis.TTL, cfg.Bank.Location())

	endpoints, err := config.LoadEndpoints(cfg.Upstream.EndpointsFile)
	if err != nil {
		return err
	}
	rules, err := config.LoadBusinessRules(cfg.Menus.RulesFile)
	if err != nil {
		return err
	}
	cipher, err := crypto.NewPinCipher(cfg.Crypto)
	if err != nil {
		return err
	}

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.MetricsEnabled,
		ServiceName:    "ussd-gateway",
		ServiceVersion: versions.GetVersionInfo().Version,
	})
	if err != nil {
		return err
	}

	client := upstream.NewClient(cfg.Upstream, cfg.Bank, endpoints, sessions, provider.Metrics())

	registry := handlers.NewRegistry()
	registry.RegisterModule(handlers.NewPinModule(client, sessions, cipher))
	registry.RegisterModule(handlers.NewBalanceModule(client, sessions, cipher))
	registry.RegisterModule(handlers.NewStatementModule(client, sessions, cipher))
	registry.RegisterModule(handlers.NewAirtimeModule(
		client, sessions, kv, rules.Airtime, cfg.Redis.SessionPrefix, cfg.Bank.Location()))
	for short, full := range menuAliases {
		registry.Alias(short, full)
	}
	registry.Freeze()
	logger.Infow("Handler registry loaded", "handlers", registry.Names())

	loader, err := menu.NewLoader(cfg.Menus.Dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(); err != nil {
			logger.Warnf("Closing menu loader failed: %v", err)
		}
	}()
	if err := loader.Watch(); err != nil {
		logger.Warnf("Menu hot reload unavailable: %v", err)
	}

	engine := menu.NewEngine(loader, registry, client)
	turns := gateway.NewHandler(sessions, engine, client, rules, cfg.Bank, provider.Metrics())

	router := api.NewRouter(api.Deps{
		Turns:   turns,
		Health:  &healthChecker{kv: kv, sessions: sessions},
		Metrics: provider.Handler(),
	})
	server := api.NewServer(address, router)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("Gateway listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server forced to shutdown: %v", err)
			return err
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Telemetry shutdown failed: %v", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown complete")
	return nil
}
