package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/bun/migrate"

	"github.com/manageconsole/manage/cmd/manage/internal/db/bunx"
	"github.com/manageconsole/manage/cmd/manage/internal/migrations"
)

// migratorFunc is the body of a db subcommand.
type migratorFunc func(ctx context.Context, m *migrate.Migrator, out io.Writer) error

// withMigrator opens the session store database named by database_url and
// hands a migrator over the session schema to fn.
func withMigrator(fn migratorFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		db, err := bunx.NewDB(ctx, viper.GetString("database_url"), viper.GetInt("max_db_connections"))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		return fn(ctx, migrate.NewMigrator(db, migrations.Migrations), cmd.OutOrStdout())
	}
}

// locked runs fn while holding the migration lock.
func locked(fn migratorFunc) migratorFunc {
	return func(ctx context.Context, m *migrate.Migrator, out io.Writer) error {
		if err := m.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() {
			if err := m.Unlock(ctx); err != nil {
				slog.Warn("failed to release migration lock", "error", err)
			}
		}()
		return fn(ctx, m, out)
	}
}

func initSchema(ctx context.Context, m *migrate.Migrator, _ io.Writer) error {
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	slog.Info("migration tables initialized")
	return nil
}

func migrateSchema(ctx context.Context, m *migrate.Migrator, _ io.Writer) error {
	group, err := m.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if group.IsZero() {
		slog.Info("session schema is up to date")
		return nil
	}
	slog.Info("applied migration group", "group", group.ID, "migrations", len(group.Migrations))
	return nil
}

func rollbackSchema(ctx context.Context, m *migrate.Migrator, _ io.Writer) error {
	group, err := m.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	if group.IsZero() {
		slog.Info("nothing to roll back")
		return nil
	}
	slog.Info("rolled back migration group", "group", group.ID)
	return nil
}

func printStatus(ctx context.Context, m *migrate.Migrator, out io.Writer) error {
	ms, err := m.MigrationsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Fprintln(out, "Session store migrations:")
	for _, mig := range ms {
		state := "pending"
		if mig.IsApplied() {
			state = fmt.Sprintf("applied (group %d)", mig.GroupID)
		}
		fmt.Fprintf(out, "  %s %s: %s\n", mig.Name, mig.Comment, state)
	}
	return nil
}

func acquireLock(ctx context.Context, m *migrate.Migrator, _ io.Writer) error {
	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	slog.Info("migration lock acquired, run 'manage db unlock' when finished")
	return nil
}

func releaseLock(ctx context.Context, m *migrate.Migrator, _ io.Writer) error {
	if err := m.Unlock(ctx); err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	slog.Info("migration lock released")
	return nil
}

// newDBCmd builds the db command tree.
func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Session store schema commands",
		Long:  `Manages the schema of the database session store. Only needed when session.store is "database".`,
	}

	dbCmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the migration tracking tables",
			RunE:  withMigrator(initSchema),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending migrations",
			RunE:  withMigrator(locked(migrateSchema)),
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Roll back the last migration group",
			RunE:  withMigrator(locked(rollbackSchema)),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE:  withMigrator(printStatus),
		},
		&cobra.Command{
			Use:   "lock",
			Short: "Acquire the migration lock",
			RunE:  withMigrator(acquireLock),
		},
		&cobra.Command{
			Use:   "unlock",
			Short: "Force release the migration lock",
			Long:  `Releases the migration lock left behind by a crashed migration.`,
			RunE:  withMigrator(releaseLock),
		},
	)
	return dbCmd
}

func init() {
	rootCmd.AddCommand(newDBCmd())
}
