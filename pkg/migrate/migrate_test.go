package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestOrdersMigrationEnforcesOneActiveOrderPerTable(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_active_table ON orders(table_id)",
		"'CREATED', 'SENT_TO_KITCHEN', 'IN_PREP', 'READY', 'SERVED', 'PENDING_PAYMENT'",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS orders",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Tab Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_tab_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))
}

func TestApplySQLiteSchemaEnforcesActiveOrderIndex(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ApplySQLiteSchema(ctx, conn))
	require.NoError(t, ApplySQLiteSchema(ctx, conn), "schema must be re-runnable")

	insert := `INSERT INTO orders (id, table_id, table_number, status) VALUES (?, 'table-1', 1, ?)`
	require.NoError(t, conn.Exec(insert, "o1", "CLOSED").Error)
	require.NoError(t, conn.Exec(insert, "o2", "CREATED").Error)
	require.Error(t, conn.Exec(insert, "o3", "SENT_TO_KITCHEN").Error)
}
