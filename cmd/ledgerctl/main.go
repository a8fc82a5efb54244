package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/ledgerbook/internal/app"
	"github.com/josh-kwaku/ledgerbook/internal/config"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Administer a ledgerbook database",
		SilenceUsage: true,
	}
	root.AddCommand(
		migrateCmd(),
		userCmd(),
		importCmd(),
		syncCmd(),
		stagedCmd(),
		reportCmd(),
	)
	return root
}

// openApp connects using the same environment the API server reads.
func openApp(cmd *cobra.Command) (*app.App, error) {
	st, err := config.LoadStore()
	if err != nil {
		return nil, err
	}
	logging.Init("ledgerctl", st.LogLevel, st.AppEnv)
	a, err := app.Open(cmd.Context(), *st, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return a, nil
}
