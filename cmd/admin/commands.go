package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/legacy-quest/progression-engine/config"
	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/content"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

var errNotPostgres = errors.New("migrations need STORAGE_DRIVER=postgres")

// ─── migrate ────────────────────────────────────────────────────────────────

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, a, func(m *postgres.Migrator) error {
				n, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, a, func(m *postgres.Migrator) error {
				if err := m.Rollback(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back latest migration")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, a, func(m *postgres.Migrator) error {
				list, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
				for _, mig := range list {
					applied := "pending"
					if mig.IsApplied {
						applied = mig.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, a *app, fn func(*postgres.Migrator) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if cfg.StorageDriver() != config.DriverPostgres {
		return errNotPostgres
	}
	// The server migrates on start; here the operator decides.
	cfg.Postgres.AutoMigrate = false

	s, err := a.storage(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(postgres.NewMigrator(s.Postgres))
}

// ─── rollover ───────────────────────────────────────────────────────────────

func newRolloverCmd(a *app) *cobra.Command {
	var season string

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Close ended league seasons now",
		Long: `Promote, relegate and reward the cohorts of ended seasons. Without
--season every ended season with unprocessed cohorts is closed. Cohorts
already processed are skipped, so running it twice is harmless.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			h := command.NewRolloverSeasonHandler(command.Deps{
				Profiles: s.Profiles,
				Locker:   s.Locker,
				Flags:    cfg.Features,
				Clock:    timeutil.SystemClock{},
				Logger:   a.log,
				Location: cfg.App.Location,
				LockTTL:  cfg.Game.LockTTL,
			}, s.Standings)

			res, err := h.Handle(cmd.Context(), command.RolloverSeasonCommand{Season: season})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEASON\tTIER\tMEMBERS\tPROMOTED\tRELEGATED\tREWARDED")
			for _, p := range res.Plans {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
					p.Season, p.Tier, len(p.FinalStandings),
					len(p.Promoted()), len(p.Relegated()), len(p.Rewards))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d cohort(s) closed, %d skipped\n", len(res.Plans), res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&season, "season", "", "season id to close, e.g. 2025-W10")
	return cmd
}

// ─── profile ────────────────────────────────────────────────────────────────

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect player profiles",
	}

	var email, session string
	get := &cobra.Command{
		Use:   "get",
		Short: "Print a profile as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := profile.NewIdentity(email, session)
			if err != nil {
				return err
			}
			s, err := a.storage(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Profiles.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
	get.Flags().StringVar(&email, "email", "", "player email")
	get.Flags().StringVar(&session, "session", "", "anonymous session id")
	get.MarkFlagsOneRequired("email", "session")

	cmd.AddCommand(get)
	return cmd
}

// ─── catalog ────────────────────────────────────────────────────────────────

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the mission catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scripted missions in unlock order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			catalog, err := content.Load(cfg.Game.CatalogPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tYEAR\tTITLE\tOPTIONS\tQUIZ\tREQUIRES")
			for _, m := range catalog.Missions() {
				requires := strings.Join(m.Prerequisites, ",")
				if requires == "" {
					requires = "-"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%s\n",
					m.Key, m.Year, m.Title, len(m.Options), len(m.Quiz), requires)
			}
			return tw.Flush()
		},
	})
	return cmd
}

// ─── flags ──────────────────────────────────────────────────────────────────

func newFlagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "Show feature flags as resolved from FEATURE_* variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FLAG\tENABLED\tROLLOUT\tDESCRIPTION")
			for _, f := range cfg.Features.All() {
				fmt.Fprintf(tw, "%s\t%t\t%d%%\t%s\n", f.Name, f.Enabled, f.RolloutPercent, f.Description)
			}
			return tw.Flush()
		},
	}
}
