package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cascade/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPage creates a page with minimal required fields.
func createTestPage(id, folderID int64, name string) *ir.Entity {
	return &ir.Entity{
		Ref:        ir.Ref(ir.KindPage, id),
		FolderID:   folderID,
		Attributes: map[string]string{"name": name},
	}
}

// createTestFolder creates a folder with minimal required fields.
func createTestFolder(id, parentID int64) *ir.Entity {
	return &ir.Entity{
		Ref:      ir.Ref(ir.KindFolder, id),
		FolderID: parentID,
	}
}
