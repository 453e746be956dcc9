package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexlinker/plexlinker/internal/config"
	"github.com/plexlinker/plexlinker/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, ctx, func(c context.Context, db *database.DB) error {
				if err := db.Migrate(c); err != nil {
					return err
				}
				return printVersion(c, cmd.OutOrStdout(), db)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, ctx, func(c context.Context, db *database.DB) error {
				if err := db.MigrateDown(c); err != nil {
					return err
				}
				return printVersion(c, cmd.OutOrStdout(), db)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, ctx, func(c context.Context, db *database.DB) error {
				states, err := db.Status(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printMigrations(out, states)
				return printVersion(c, out, db)
			})
		},
	})

	return cmd
}

func withDatabase(cmd *cobra.Command, ctx *commandContext, fn func(context.Context, *database.DB) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Rules.Source != config.RulesSourceDB {
		return fmt.Errorf("migrations apply to the %q rules source, current source is %q", config.RulesSourceDB, cfg.Rules.Source)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(runContext(cmd), db)
}

func printVersion(ctx context.Context, w io.Writer, db *database.DB) error {
	version, err := db.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: schema version %d\n", db.Path(), version)
	return nil
}

func printMigrations(w io.Writer, states []database.MigrationState) {
	rows := make([][]string, 0, len(states))
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = "applied"
			if !s.AppliedAt.IsZero() {
				applied += " " + s.AppliedAt.Local().Format(time.DateTime)
			}
		}
		rows = append(rows, []string{strconv.FormatInt(s.Version, 10), s.Name, applied})
	}
	fmt.Fprintln(w, renderTable([]string{"Version", "Migration", "State"}, rows, []columnAlignment{alignRight}))
}
