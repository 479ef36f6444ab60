package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"
)

func TestMigrationFilesAreWellFormed(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.up\.sql$`)
	var versions []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			t.Errorf("migration file %q does not match NNNN_name.up.sql", name)
			continue
		}
		versions = append(versions, match[1])

		contents, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			t.Fatalf("read migration %s: %v", name, err)
		}
		if len(contents) == 0 {
			t.Errorf("migration %s is empty", name)
		}
	}

	if len(versions) == 0 {
		t.Fatal("no migration files found")
	}
	if !sort.StringsAreSorted(versions) {
		t.Errorf("migration versions are not in order: %v", versions)
	}
	seen := map[string]bool{}
	for _, v := range versions {
		if seen[v] {
			t.Errorf("duplicate migration version %s", v)
		}
		seen[v] = true
	}
}

func TestInitMigrationCoversCoreTables(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	sqlText := string(contents)

	for _, table := range []string{
		"users",
		"refresh_sessions",
		"revoked_access_tokens",
		"books",
		"chapters",
		"verses",
		"highlights",
		"notes",
		"study_groups",
		"group_members",
		"study_sessions",
	} {
		if !regexp.MustCompile(`CREATE TABLE IF NOT EXISTS ` + table + `\b`).MatchString(sqlText) {
			t.Errorf("init migration is missing table %s", table)
		}
	}
}
