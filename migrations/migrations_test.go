package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/lightrelay/internal/infrastructure/database"
	"github.com/nerrad567/lightrelay/migrations"
)

func TestEmbeddedSchemaAppliesAndRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "schema.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, source, created_at) VALUES ('aud-1', 'command', 'fleet', 'discord', '2026-10-19T12:00:00Z')`,
	); err != nil {
		t.Fatalf("insert into audit_logs: %v", err)
	}

	_, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
}
