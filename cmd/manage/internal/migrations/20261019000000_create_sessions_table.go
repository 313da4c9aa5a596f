package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/manageconsole/manage/cmd/manage/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261019000000, down_20261019000000)
}

// up_20261019000000 creates the sessions table
func up_20261019000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating sessions table...")

	_, err := db.NewCreateTable().
		Model((*models.Session)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	// expiry sweeps scan by expires_at
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions expires_at index: %w", err)
	}

	if IsPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `ALTER TABLE sessions ALTER COLUMN data TYPE JSONB USING data::jsonb`)
		if err != nil {
			return fmt.Errorf("failed to convert sessions.data to jsonb: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20261019000000 drops the sessions table
func down_20261019000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping sessions table...")

	_, err := db.NewDropTable().
		Model((*models.Session)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop sessions table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}
