package main

import (
	"net/http"

	"github.com/josh-kwaku/ledgerbook/api"
	"github.com/josh-kwaku/ledgerbook/internal/app"
	"github.com/josh-kwaku/ledgerbook/internal/auth"
	"github.com/josh-kwaku/ledgerbook/internal/config"
	"github.com/josh-kwaku/ledgerbook/internal/handler"
	"github.com/josh-kwaku/ledgerbook/internal/middleware"
)

func routes(cfg *config.Config, a *app.App) http.Handler {
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry)

	health := handler.NewHealthHandler(
		handler.HealthCheck{Name: "database", Check: a.DB.PingContext},
		handler.HealthCheck{Name: "schema", Check: a.SchemaReady},
	)
	docs := handler.NewDocsHandler(api.Spec, "/docs/openapi.yaml")
	authH := handler.NewAuthHandler(a.UserSvc, tokens)
	users := handler.NewUserHandler(a.Users)
	categories := handler.NewCategoryHandler(a.Accounts)
	accounts := handler.NewAccountHandler(a.Accounts, a.Balances, a.Ledger)
	transactions := handler.NewTransactionHandler(a.Ledger)
	reports := handler.NewReportHandler(a.Reports)
	staging := handler.NewStagingHandler(a.Staging, a.Sync)
	webhooks := handler.NewWebhookHandler(a.Staging, cfg.TallySigningSecret)

	requireAuth := middleware.Auth(tokens)
	idempotent := middleware.Idempotency(a.Idempotency)

	read := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }
	write := func(h http.HandlerFunc) http.Handler { return requireAuth(idempotent(h)) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	mux.HandleFunc("GET /docs", docs.UI)
	mux.HandleFunc("GET /docs/openapi.yaml", docs.Spec)

	mux.HandleFunc("POST /auth/register", authH.Register)
	mux.HandleFunc("POST /auth/login", authH.Login)
	mux.Handle("GET /users/me", read(users.Me))

	mux.HandleFunc("POST /webhooks/tally", webhooks.ReceiveTally)

	mux.Handle("GET /api/v1/categories", read(categories.List))
	mux.Handle("POST /api/v1/categories", write(categories.Create))
	mux.Handle("GET /api/v1/categories/{id}", read(categories.Get))
	mux.Handle("PUT /api/v1/categories/{id}", write(categories.Update))
	mux.Handle("DELETE /api/v1/categories/{id}", write(categories.Delete))

	mux.Handle("GET /api/v1/accounts", read(accounts.List))
	mux.Handle("POST /api/v1/accounts", write(accounts.Create))
	mux.Handle("GET /api/v1/accounts/balances", read(accounts.Balances))
	mux.Handle("GET /api/v1/accounts/{id}", read(accounts.Get))
	mux.Handle("PUT /api/v1/accounts/{id}", write(accounts.Update))
	mux.Handle("DELETE /api/v1/accounts/{id}", write(accounts.Delete))
	mux.Handle("GET /api/v1/accounts/{id}/balance", read(accounts.Balance))
	mux.Handle("GET /api/v1/accounts/{id}/journal-entries", read(accounts.JournalEntries))

	mux.Handle("GET /api/v1/transactions", read(transactions.List))
	mux.Handle("POST /api/v1/transactions", write(transactions.Create))
	mux.Handle("GET /api/v1/transactions/{id}", read(transactions.Get))
	mux.Handle("PUT /api/v1/transactions/{id}", write(transactions.Update))
	mux.Handle("DELETE /api/v1/transactions/{id}", write(transactions.Delete))

	mux.Handle("GET /api/v1/journal-entries", read(transactions.ListEntries))
	mux.Handle("PUT /api/v1/journal-entries/{id}", write(transactions.UpdateEntry))
	mux.Handle("DELETE /api/v1/journal-entries/{id}", write(transactions.DeleteEntry))

	mux.Handle("GET /api/v1/reports/balance-sheet", read(reports.BalanceSheet))
	mux.Handle("GET /api/v1/reports/income-statement", read(reports.IncomeStatement))

	mux.Handle("GET /api/v1/import-sources", read(staging.ListSources))
	mux.Handle("POST /api/v1/import-sources", write(staging.CreateSource))
	mux.Handle("GET /api/v1/import-sources/{id}", read(staging.GetSource))
	mux.Handle("PUT /api/v1/import-sources/{id}", write(staging.UpdateSource))
	mux.Handle("POST /api/v1/import-sources/{id}/csv", write(staging.ImportCSV))
	mux.Handle("POST /api/v1/import-sources/{id}/sync", write(staging.Sync))

	mux.Handle("GET /api/v1/staged-transactions", read(staging.ListStaged))
	mux.Handle("POST /api/v1/staged-transactions", write(staging.Stage))
	mux.Handle("PUT /api/v1/staged-transactions/{id}/account", write(staging.AssignAccount))
	mux.Handle("POST /api/v1/staged-transactions/{id}/process", write(staging.Process))
	mux.Handle("POST /api/v1/staged-transactions/bulk-process", write(staging.BulkProcess))
	mux.Handle("POST /api/v1/staged-transactions/bulk-delete", write(staging.BulkDelete))

	return middleware.Chain(mux, middleware.RequestID, middleware.Recovery, middleware.AccessLog)
}
