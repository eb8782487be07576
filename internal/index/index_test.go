package index

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/refindex"
	"github.com/starford/archgraph/internal/report"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "archgraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot() Snapshot {
	idx := &refindex.ReferenceIndex{
		Version:   refindex.Version,
		Generated: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Features: map[string]*models.FeatureRecord{
			"auth": {
				ID: "auth", File: "docs/features/auth.md", Status: "active",
				EntryPoint:     "internal/auth/handler.go",
				CodeRefs:       []string{"internal/auth/handler.go"},
				Dependencies:   []string{"store"},
				InterfacesUsed: []string{"01--02-auth-store"},
			},
			"billing": {ID: "billing", File: "docs/features/billing.md", Dependencies: []string{"store"}},
			"store": {
				ID: "store", File: "docs/features/store.md",
				InterfacesProvided: []string{"01--02-auth-store"},
			},
		},
		Code: map[string]*models.CodeRecord{
			"internal/auth/handler.go": {Path: "internal/auth/handler.go", Kind: models.CodeSource, Exists: true, DocumentedIn: []string{"auth"}},
		},
		Interfaces: map[string]*models.InterfaceEdge{
			"01--02-auth-store": {ID: "01--02-auth-store", File: "docs/interfaces/01--02-auth-store.md", From: "auth", To: "store", Type: "call", PairToken: "01--02"},
		},
		SharedTypes: map[string]*models.SharedTypeGroup{
			"01--02_02--03": {ID: "01--02_02--03", File: "docs/shared-types/01--02_02--03.md", Interfaces: []string{"01--02", "02--03"}},
		},
		Terms: map[string]*models.TermRecord{
			"Pair Token": {
				Name: "Pair Token", Scope: models.ScopeGlobal, File: "docs/terms/g.md", Line: 3,
				Aliases: []string{"token"}, Definition: "Two zero-padded feature numbers.",
				References: []models.TermUse{{File: "docs/features/auth.md", Line: 9}},
			},
			"docs/features/auth.md#Session": {
				Name: "Session", Scope: models.ScopeDocument, File: "docs/features/auth.md", Line: 5,
				Aliases: []string{"sess"},
			},
		},
	}
	rep := &report.Report{}
	rep.Add(
		report.Issue{Kind: report.KindCircularDependency, Severity: report.SeverityError, File: "docs/features/auth.md",
			Subject: "auth", Message: "cycle", Cycle: []string{"auth", "store", "auth"}},
		report.Warning(report.KindOrphan, "internal/util/x.go", "orphan"),
	)
	return Snapshot{
		RunID:   "run-1",
		Index:   idx,
		Report:  rep,
		Orphans: []models.Orphan{{Path: "internal/util/x.go", Class: models.CodeSource}},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"meta", "features", "code", "interfaces", "shared_types", "terms", "term_aliases", "edges", "issues", "orphans"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestReplaceAndQuery(t *testing.T) {
	db := testDB(t)
	snap := testSnapshot()
	if err := db.Replace(snap); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	f, err := db.Feature("auth")
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	if !reflect.DeepEqual(f, snap.Index.Features["auth"]) {
		t.Errorf("feature = %+v, want %+v", f, snap.Index.Features["auth"])
	}

	c, err := db.Code("./internal/auth/handler.go")
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if !c.Exists || c.DocumentedIn[0] != "auth" {
		t.Errorf("code = %+v", c)
	}

	e, err := db.Interface("01--02-auth-store")
	if err != nil {
		t.Fatalf("Interface: %v", err)
	}
	if e.From != "auth" || e.To != "store" {
		t.Errorf("interface = %+v", e)
	}

	g, err := db.SharedType("01--02_02--03")
	if err != nil {
		t.Fatalf("SharedType: %v", err)
	}
	if len(g.Interfaces) != 2 {
		t.Errorf("shared type interfaces = %v", g.Interfaces)
	}

	meta, err := db.Meta()
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if meta.RunID != "run-1" || !meta.Generated.Equal(snap.Index.Generated) {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Summary.Errors != 1 || meta.Summary.Warnings != 1 {
		t.Errorf("summary = %+v", meta.Summary)
	}
}

func TestTerm_ByKeyAndAlias(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	byAlias, err := db.Term("token")
	if err != nil {
		t.Fatalf("Term(alias): %v", err)
	}
	if byAlias.Name != "Pair Token" {
		t.Errorf("name = %q, want %q", byAlias.Name, "Pair Token")
	}

	local, err := db.Term("docs/features/auth.md#Session")
	if err != nil {
		t.Fatalf("Term(local): %v", err)
	}
	if local.Scope != models.ScopeDocument {
		t.Errorf("scope = %q", local.Scope)
	}

	// Local aliases are not global lookups.
	if _, err := db.Term("sess"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Term(sess) err = %v, want ErrNotFound", err)
	}
}

func TestDependents(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	deps, err := db.Dependents("store")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if !reflect.DeepEqual(deps, []string{"auth", "billing"}) {
		t.Errorf("dependents = %v, want [auth billing]", deps)
	}
}

func TestIssuesAndOrphans(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	all, err := db.Issues(IssueFilter{})
	if err != nil {
		t.Fatalf("Issues: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("issues = %d, want 2", len(all))
	}
	if !reflect.DeepEqual(all[0].Cycle, []string{"auth", "store", "auth"}) {
		t.Errorf("cycle = %v", all[0].Cycle)
	}

	errs, _ := db.Issues(IssueFilter{Severity: string(report.SeverityError)})
	if len(errs) != 1 || errs[0].Kind != report.KindCircularDependency {
		t.Errorf("error issues = %+v", errs)
	}

	orphans, err := db.Orphans()
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Path != "internal/util/x.go" {
		t.Errorf("orphans = %+v", orphans)
	}
}

func TestReplaceDropsPreviousRun(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	snap := testSnapshot()
	delete(snap.Index.Features, "billing")
	snap.RunID = "run-2"
	if err := db.Replace(snap); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Feature("billing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("billing err = %v, want ErrNotFound", err)
	}
	list, _ := db.ListFeatures()
	if len(list) != 2 {
		t.Errorf("features = %d, want 2", len(list))
	}
	meta, _ := db.Meta()
	if meta.RunID != "run-2" {
		t.Errorf("run id = %q, want %q", meta.RunID, "run-2")
	}
}

func TestNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Feature("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Feature err = %v", err)
	}
	if _, err := db.Meta(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Meta err = %v", err)
	}
}

func TestSearchTerms_Basic(t *testing.T) {
	db := testDB(t)
	if err := db.Replace(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	hits, err := db.SearchTerms("zero", 10)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "Pair Token" {
		t.Errorf("hits = %+v, want one hit for Pair Token", hits)
	}
}
