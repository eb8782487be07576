// Package testutil provides shared test helpers for setting up corpora and
// mirrored indexes.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/archgraph/internal/engine"
	"github.com/starford/archgraph/internal/importgraph"
	"github.com/starford/archgraph/internal/index"
	"github.com/starford/archgraph/internal/storage"
)

// SampleCorpus is a small healthy corpus: two features with one interface,
// one shared type and a glossary.
var SampleCorpus = map[string]string{
	"docs/features/auth.md": `---
feature: auth
status: active
entry_point: internal/auth/handler.go
code_files:
  - internal/auth/handler.go
dependencies:
  - store
---
# Auth

Calls 01--02-auth-store to persist sessions. Uses [[Pair Token]].

## Components

1. **Handler** - ` + "`internal/auth/handler.go`" + `
`,
	"docs/features/store.md": `---
feature: store
status: active
entry_point: internal/store/db.go
---
# Store
`,
	"docs/interfaces/01--02-auth-store.md": `---
from: auth
to: store
type: call
---
# auth -> store
`,
	"docs/shared-types/01--02.md": `---
type: shared
status: active
interfaces:
  - 01--02
---
`,
	"docs/terms/glossary.md": "## [[Pair Token]]\n- **Aliases**: token\n\nTwo zero-padded feature numbers.\n",
	"internal/auth/handler.go": "package auth\n",
	"internal/store/db.go":     "package store\n",
	"imports.json":             `{"imports": {"internal/auth/handler.go": ["internal/store/db.go"]}}`,
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "archgraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCorpus writes files into a temporary corpus root.
func TestCorpus(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	for p, body := range files {
		if err := store.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	return root, store
}

// EngineOptions matches the layout used by SampleCorpus.
func EngineOptions() engine.Options {
	return engine.Options{
		FeaturesDir:     "docs/features",
		InterfacesDir:   "docs/interfaces",
		SharedTypesDir:  "docs/shared-types",
		TermsDir:        "docs/terms",
		GlobalTermScope: []string{"docs/terms"},
		IndexPath:       ".archgraph/index.json",
		Walk:            storage.WalkOptions{Exclude: []string{".archgraph/**", "imports.json"}},
		Now:             func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
}

// DocumentDirs are the document directories of EngineOptions.
func DocumentDirs() []string {
	o := EngineOptions()
	return []string{o.FeaturesDir, o.InterfacesDir, o.SharedTypesDir, o.TermsDir}
}

// Indexed writes files, runs one sync and returns the store and mirror.
func Indexed(t *testing.T, files map[string]string) (*storage.FS, *index.DB, *engine.Result) {
	t.Helper()
	_, store := TestCorpus(t, files)
	db := TestDB(t)
	imports := importgraph.FileProvider{Store: store, Path: "imports.json", Optional: true}
	eng := engine.New(EngineOptions(), store, imports, Logger(), nil)
	res, err := index.Sync(context.Background(), db, eng, false, Logger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return store, db, res
}
