package database

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, os.DirFS("testdata")); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Both tables exist.
	for _, table := range []string{"widgets", "gadgets"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s not created: %v", table, err)
		}
	}

	// Both versions recorded.
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("reading schema_migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 recorded migrations, got %d", count)
	}

	// Running again is idempotent.
	if err := db.Migrate(ctx, os.DirFS("testdata")); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260801_120000_create_widgets.up.sql", "20260801_120000", true, true},
		{"20260801_120000_create_widgets.down.sql", "20260801_120000", false, true},
		{"README.md", "", false, false},
		{"20260801_120000_no_direction.sql", "", false, false},
		{"notaversion.up.sql", "", false, false},
	}

	for _, tt := range tests {
		version, isUp, ok := parseMigrationFilename(tt.name)
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tt.wantVersion || isUp != tt.wantUp {
			t.Errorf("%s: got (%s, %v), want (%s, %v)", tt.name, version, isUp, tt.wantVersion, tt.wantUp)
		}
	}
}

func TestMigrationName(t *testing.T) {
	if got := migrationName("20260801_120000_create_widgets.up.sql"); got != "create_widgets" {
		t.Errorf("migrationName() = %s, want create_widgets", got)
	}
}
