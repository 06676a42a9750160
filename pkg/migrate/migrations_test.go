package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableside-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestMigrationContents(t *testing.T) {
	cases := []struct {
		suffix string
		checks []string
	}{
		{
			suffix: "_create_tables.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS tables",
				"CONSTRAINT ux_tables_branch_number UNIQUE (branch_code, table_number)",
				"payment_discounted_total numeric(14,4) NOT NULL",
				"CHECK (payment_status IN ('Settled', 'Due'))",
				"FOREIGN KEY (table_id) REFERENCES tables(id) ON DELETE CASCADE",
				"DROP TABLE IF EXISTS history_entries",
			},
		},
		{
			suffix: "_create_settlements.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS settlements",
				"CHECK (state IN ('settling', 'closed', 'completed'))",
				"DROP TABLE IF EXISTS settlements",
			},
		},
		{
			suffix: "_create_inventory.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS inventory_items",
				"CREATE TABLE IF NOT EXISTS inventory_history",
				"CHECK (action IN ('Add', 'Update', 'Deduct'))",
				"DROP TABLE IF EXISTS inventory_items",
			},
		},
		{
			suffix: "_create_vendors.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS vendor_stock",
				"FOREIGN KEY (vendor_id) REFERENCES vendors(id) ON DELETE CASCADE",
			},
		},
		{
			suffix: "_create_outbox.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS outbox_events",
				"ux_outbox_events_event_aggregate",
				"CREATE TABLE IF NOT EXISTS outbox_dlq",
			},
		},
		{
			suffix: "_settlement_deduction_claim.sql",
			checks: []string{
				"CHECK (state IN ('settling', 'closed', 'deducting', 'completed'))",
				"CREATE UNIQUE INDEX IF NOT EXISTS uq_inventory_history_settlement_deduct",
				"WHERE action = 'Deduct' AND settlement_id IS NOT NULL",
				"UPDATE settlements SET state = 'closed' WHERE state = 'deducting'",
			},
		},
		{
			suffix: "_create_products.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS products",
				"ingredients jsonb NOT NULL DEFAULT '[]'::jsonb",
				"CHECK (price >= 0)",
				"DROP TABLE IF EXISTS products",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.suffix, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join("migrations", "*"+tc.suffix))
			require.NoError(t, err)
			require.Len(t, matches, 1)

			data, err := os.ReadFile(matches[0])
			require.NoError(t, err)
			content := string(data)
			for _, sub := range tc.checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestEmbeddedSourceMatchesDir(t *testing.T) {
	source, err := migrate.Source("")
	require.NoError(t, err)
	embedded, err := migrate.Validate(source)
	require.NoError(t, err)

	onDisk, err := migrate.Source("migrations")
	require.NoError(t, err)
	files, err := migrate.Validate(onDisk)
	require.NoError(t, err)
	require.Equal(t, files, embedded)
	require.Len(t, files, 7)
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := migrate.Source(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestNewRunnerRequiresDB(t *testing.T) {
	source, err := migrate.Source("")
	require.NoError(t, err)
	_, err = migrate.NewRunner(nil, source)
	require.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestValidateDirRejectsUnbalancedBlocks(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20261001090000_broken.sql"), []byte(body), 0o644))
	require.ErrorContains(t, migrate.ValidateDir(dir), "unbalanced")
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20261001090000_swapped.sql"), []byte(body), 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	client := dbtest.Open(t)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: config.DriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, dbtest.Logger(), client))
	require.True(t, client.DB().Migrator().HasTable("settlements"))
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}
	require.NoError(t, migrate.MaybeRunDev(context.Background(), cfg, nil, nil))
}
