//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM terms_fts`).Scan(&count); err != nil {
		t.Fatalf("terms_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(testSnapshot()); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	hits, err := db.SearchTerms("numbers", 10)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_ReplaceClearsOldTerms(t *testing.T) {
	db := testDB(t)
	_ = db.Replace(testSnapshot())
	snap := testSnapshot()
	delete(snap.Index.Terms, "Pair Token")
	_ = db.Replace(snap)

	hits, _ := db.SearchTerms("numbers", 10)
	if len(hits) != 0 {
		t.Errorf("stale term still searchable: %+v", hits)
	}
}
