// Package main is the operator CLI for the progression engine: schema
// migrations, manual league rollovers and read-only inspection of profiles,
// the mission catalog and feature flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/legacy-quest/progression-engine/config"
	"github.com/legacy-quest/progression-engine/internal/bootstrap"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.Load).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs. Storage is opened on demand so
// read-only commands like "catalog list" work without a database.
type app struct {
	load func() (*config.Config, error)

	cfg *config.Config
	log *logger.Logger
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := a.load()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.log = bootstrap.NewLogger(cfg.Log, cfg.App.Name+"-admin", cfg.App.Version)
	return cfg, nil
}

func (a *app) storage(ctx context.Context) (*bootstrap.Storage, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return bootstrap.OpenStorage(ctx, cfg, a.log)
}

func newRootCmd(load func() (*config.Config, error)) *cobra.Command {
	a := &app{load: load}

	root := &cobra.Command{
		Use:   "progression-admin",
		Short: "Operate the progression engine",
		Long: `Operator tooling for the progression engine. Every command reads the
same environment (and optional .env file) as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(a),
		newRolloverCmd(a),
		newProfileCmd(a),
		newCatalogCmd(a),
		newFlagsCmd(a),
	)
	return root
}
