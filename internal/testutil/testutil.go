// Package testutil provides shared test helpers for journals and photo inboxes.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/storage"
)

// TestJournal opens a journal in a temporary SQLite file that is removed
// when the test ends.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "plantcare-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory backed by storage.FS.
func TestInbox(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
