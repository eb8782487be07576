package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/archgraph/internal/metrics"
	"github.com/starford/archgraph/internal/queryservice"
	"github.com/starford/archgraph/internal/testutil"
)

// testEnv indexes the sample corpus and returns a router over it. A
// non-empty token enables auth.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	store, db, _ := testutil.Indexed(t, testutil.SampleCorpus)
	m := metrics.New()
	svc := queryservice.NewService(store, db, m, "http", testutil.DocumentDirs())
	return NewRouter(svc, authToken != "", authToken, nil, m.Handler())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestListAndGetFeature(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/features")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
		Total int `json:"total"`
	}
	decode(t, w, &list)
	if list.Total != 2 || list.Features[0].ID != "auth" || list.Features[1].ID != "store" {
		t.Errorf("list = %+v", list)
	}

	w = get(t, router, "/features/auth")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var f struct {
		ID             string   `json:"id"`
		Dependencies   []string `json:"dependencies"`
		InterfacesUsed []string `json:"interfaces_used"`
		Dependents     []string `json:"dependents"`
	}
	decode(t, w, &f)
	if f.ID != "auth" {
		t.Errorf("id = %q, want auth", f.ID)
	}
	if len(f.Dependencies) != 1 || f.Dependencies[0] != "store" {
		t.Errorf("dependencies = %v", f.Dependencies)
	}
	if len(f.InterfacesUsed) != 1 || f.InterfacesUsed[0] != "01--02-auth-store" {
		t.Errorf("interfaces_used = %v", f.InterfacesUsed)
	}
	if f.Dependents == nil || len(f.Dependents) != 0 {
		t.Errorf("dependents = %v, want empty list", f.Dependents)
	}
}

func TestDependents(t *testing.T) {
	router := testEnv(t, "")
	w := get(t, router, "/features/store/dependents")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Dependents []string `json:"dependents"`
	}
	decode(t, w, &body)
	if len(body.Dependents) != 1 || body.Dependents[0] != "auth" {
		t.Errorf("dependents = %v, want [auth]", body.Dependents)
	}

	if w := get(t, router, "/features/ghost/dependents"); w.Code != http.StatusNotFound {
		t.Errorf("unknown feature status = %d, want 404", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	router := testEnv(t, "")
	for _, target := range []string{
		"/features/nope",
		"/code/internal/nope.go",
		"/interfaces/09--09-nope",
		"/shared-types/09--09",
		"/terms/Nope",
		"/documents/docs/features/nope.md",
	} {
		w := get(t, router, target)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, w.Code)
		}
	}
}

func TestGetCode(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/code/internal/auth/handler.go")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var rec struct {
		DocumentedIn []string `json:"documented_in"`
		Imports      []string `json:"imports"`
	}
	decode(t, w, &rec)
	if len(rec.DocumentedIn) != 1 || rec.DocumentedIn[0] != "auth" {
		t.Errorf("documented_in = %v", rec.DocumentedIn)
	}
	if len(rec.Imports) != 1 || rec.Imports[0] != "internal/store/db.go" {
		t.Errorf("imports = %v", rec.Imports)
	}

	// Encoded slashes.
	w = get(t, router, "/code/internal%2Fauth%2Fhandler.go")
	if w.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", w.Code)
	}
}

func TestInterfaceAndSharedType(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/interfaces/01--02-auth-store")
	if w.Code != http.StatusOK {
		t.Fatalf("interface status = %d", w.Code)
	}
	var e struct {
		From             string   `json:"from"`
		To               string   `json:"to"`
		SharedTypeGroups []string `json:"shared_type_groups"`
	}
	decode(t, w, &e)
	if e.From != "auth" || e.To != "store" {
		t.Errorf("edge = %+v", e)
	}
	if len(e.SharedTypeGroups) != 1 || e.SharedTypeGroups[0] != "01--02" {
		t.Errorf("shared_type_groups = %v", e.SharedTypeGroups)
	}

	if w := get(t, router, "/shared-types/01--02"); w.Code != http.StatusOK {
		t.Errorf("shared type status = %d", w.Code)
	}
}

func TestTerms(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/terms/Pair%20Token")
	if w.Code != http.StatusOK {
		t.Fatalf("term status = %d", w.Code)
	}
	var term struct {
		Name       string `json:"name"`
		References []struct {
			File string `json:"file"`
		} `json:"references"`
	}
	decode(t, w, &term)
	if term.Name != "Pair Token" || len(term.References) != 1 || term.References[0].File != "docs/features/auth.md" {
		t.Errorf("term = %+v", term)
	}

	if w := get(t, router, "/terms/token"); w.Code != http.StatusOK {
		t.Errorf("alias status = %d", w.Code)
	}

	if w := get(t, router, "/terms"); w.Code != http.StatusBadRequest {
		t.Errorf("search without q status = %d, want 400", w.Code)
	}
	w = get(t, router, "/terms?q=zero")
	if !strings.Contains(w.Body.String(), "Pair Token") {
		t.Errorf("search = %s", w.Body.String())
	}
}

func TestReportAndOrphans(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/report")
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d", w.Code)
	}
	var view struct {
		Meta struct {
			RunID   string `json:"run_id"`
			Summary struct {
				OK bool `json:"ok"`
			} `json:"summary"`
		} `json:"meta"`
		Issues []any `json:"issues"`
	}
	decode(t, w, &view)
	if view.Meta.RunID == "" || !view.Meta.Summary.OK {
		t.Errorf("meta = %+v", view.Meta)
	}
	if view.Issues == nil {
		t.Error("issues should encode as an empty list")
	}

	w = get(t, router, "/orphans")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"orphans":[]`) {
		t.Errorf("orphans = %d %s", w.Code, w.Body.String())
	}
}

func TestGraph(t *testing.T) {
	router := testEnv(t, "")
	w := get(t, router, "/graph")
	var g struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
		Links []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"links"`
	}
	decode(t, w, &g)
	if len(g.Nodes) != 2 {
		t.Errorf("nodes = %+v", g.Nodes)
	}
	if len(g.Links) != 1 || g.Links[0].Source != "auth" || g.Links[0].Target != "store" {
		t.Errorf("links = %+v", g.Links)
	}
}

func TestDocumentETag(t *testing.T) {
	router := testEnv(t, "")
	w := get(t, router, "/documents/docs/features/store.md")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var doc struct {
		Checksum string `json:"checksum"`
	}
	decode(t, w, &doc)
	if w.Header().Get("ETag") != `"`+doc.Checksum+`"` {
		t.Errorf("ETag = %q, checksum = %q", w.Header().Get("ETag"), doc.Checksum)
	}
}

func TestDocument_OnlyCorpusDocuments(t *testing.T) {
	router := testEnv(t, "")
	for _, target := range []string{
		"/documents/internal/store/db.go",
		"/documents/imports.json",
		"/documents/docs/features/../../imports.json",
		"/documents/docs%2Ffeatures%2F..%2F..%2Finternal%2Fstore%2Fdb.go",
	} {
		w := get(t, router, target)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, w.Code)
		}
		if strings.Contains(w.Body.String(), "package") {
			t.Errorf("%s leaked file contents: %s", target, w.Body.String())
		}
	}

	if w := get(t, router, "/documents/docs/terms/glossary.md"); w.Code != http.StatusOK {
		t.Errorf("glossary status = %d, want 200", w.Code)
	}
}

func TestAuth(t *testing.T) {
	router := testEnv(t, "secret")

	if w := get(t, router, "/features"); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

func TestMetricsEndpointCountsQueries(t *testing.T) {
	router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/features/auth", nil)
	req.Header.Set("Authorization", "Bearer secret")
	router.ServeHTTP(httptest.NewRecorder(), req)

	// Metrics are served outside the auth group.
	w := get(t, router, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `record="feature"`) {
		t.Errorf("query counter missing from metrics output")
	}
}
