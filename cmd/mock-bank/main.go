package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/middleware"
)

type config struct {
	Port         int    `env:"MOCK_BANK_PORT" envDefault:"8081"`
	ClientID     string `env:"MOCK_BANK_CLIENT_ID" envDefault:"ledgerbook"`
	ClientSecret string `env:"MOCK_BANK_CLIENT_SECRET" envDefault:"ledgerbook-secret"`
	Days         int    `env:"MOCK_BANK_DAYS" envDefault:"90"`
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("mock-bank", "info", cfg.AppEnv)

	bank := newBank(cfg.ClientID, cfg.ClientSecret, time.Now().UTC(), cfg.Days)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Chain(bank.routes(), middleware.RequestID, middleware.AccessLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock bank started", "addr", addr, "client_id", cfg.ClientID)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
