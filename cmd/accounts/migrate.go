// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/store"
)

// migrator is the part of *store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Status() (*store.Status, error)
	Close() error
}

// newMigrator opens the migrator; tests replace it.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command and its subcommands.
// Without a subcommand it applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
		Args:  cobra.NoArgs,
		RunE:  withMigrator(migrateUp),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(migrateUp),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			if err := m.Steps(-1); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "roll back").Wrap(err)
			}
			cmd.Println("Rolled back one migration")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  `Set the schema version and clear the dirty flag after a failed migration was repaired by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
			}
			cmd.Printf("Forced schema version to %d\n", version)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(migrateStatus),
	})

	return cmd
}

type migrateFunc func(cmd *cobra.Command, m migrator, args []string) error

// withMigrator loads the configuration, opens a migrator for the duration of
// fn and closes it afterwards.
func withMigrator(fn migrateFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateDatabase(); err != nil {
			return err
		}

		m, err := newMigrator(cfg.Database.URL)
		if err != nil {
			return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
			}
		}()
		return fn(cmd, m, args)
	}
}

func migrateUp(cmd *cobra.Command, m migrator, _ []string) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}

	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateStatus(cmd *cobra.Command, m migrator, _ []string) error {
	status, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read status").Wrap(err)
	}

	state := "clean"
	if status.Dirty {
		state = "dirty"
	}
	cmd.Printf("Version: %d (%s)\n", status.Version, state)
	printMigrations(cmd, "Applied", status.Applied)
	printMigrations(cmd, "Pending", status.Pending)
	return nil
}

func printMigrations(cmd *cobra.Command, title string, migrations []store.Migration) {
	cmd.Printf("%s: %d\n", title, len(migrations))
	for _, mig := range migrations {
		name := mig.Name
		if name == "" {
			name = fmt.Sprintf("%06d", mig.Version)
		}
		cmd.Printf("  %s\n", name)
	}
}

// parseForceVersion reads the version argument of "migrate force".
func parseForceVersion(s string) (int, error) {
	var version int
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
