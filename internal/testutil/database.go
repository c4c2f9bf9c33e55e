package testutil

import (
	"testing"

	"pinvault/internal/config"
	"pinvault/internal/database"
)

// NewTestDatabases creates in-memory thumbnail cache and metadata databases
// with schema applied. They are closed when the test completes.
func NewTestDatabases(t *testing.T) *database.Databases {
	t.Helper()

	dbs, err := database.NewDatabasesFromConfig(config.DatabaseConfig{Type: "memory"}, "")
	if err != nil {
		t.Fatalf("failed to open databases: %v", err)
	}
	t.Cleanup(func() {
		dbs.Close()
	})
	return dbs
}
