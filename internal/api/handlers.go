package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/archgraph/internal/index"
	"github.com/starford/archgraph/internal/queryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *queryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *queryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts a repository path from the trailing wildcard.
// Encoded slashes (docs%2Ffeatures%2Fa.md) are accepted.
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// Meta handles GET /api/meta.
//
//	@Summary		Describe the indexed run
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	index.Meta
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/meta [get]
func (h *Handler) Meta(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Meta(r.Context())
	if err != nil {
		writeLookupError(w, "meta", "", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListFeatures handles GET /api/features.
//
//	@Summary		List features
//	@Tags			features
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/features [get]
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListFeatures(r.Context())
	if err != nil {
		writeLookupError(w, "list features", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"features": items,
		"total":    len(items),
	})
}

// GetFeature handles GET /api/features/{id}.
//
//	@Summary		Get a feature with its dependents and issues
//	@Tags			features
//	@Produce		json
//	@Param			id	path		string	true	"Feature id"
//	@Success		200	{object}	queryservice.FeatureDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/features/{id} [get]
func (h *Handler) GetFeature(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	f, err := h.svc.Feature(r.Context(), id)
	if err != nil {
		writeLookupError(w, "get feature", id, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Dependents handles GET /api/features/{id}/dependents.
func (h *Handler) Dependents(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	deps, err := h.svc.Dependents(r.Context(), id)
	if err != nil {
		writeLookupError(w, "dependents", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feature": id, "dependents": deps})
}

// Graph handles GET /api/graph.
//
//	@Summary		Feature dependency graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeLookupError(w, "graph", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"links": links,
	})
}

// GetCode handles GET /api/code/*.
//
//	@Summary		Get a code file record
//	@Tags			code
//	@Produce		json
//	@Param			path	path		string	true	"Repository path"
//	@Success		200		{object}	models.CodeRecord
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/code/{path} [get]
func (h *Handler) GetCode(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	rec, err := h.svc.Code(r.Context(), p)
	if err != nil {
		writeLookupError(w, "get code", p, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetDocument handles GET /api/documents/*.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.Document(r.Context(), p)
	if err != nil {
		writeLookupError(w, "get document", p, err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// GetInterface handles GET /api/interfaces/{id}.
func (h *Handler) GetInterface(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	e, err := h.svc.Interface(r.Context(), id)
	if err != nil {
		writeLookupError(w, "get interface", id, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetSharedType handles GET /api/shared-types/{id}.
func (h *Handler) GetSharedType(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	g, err := h.svc.SharedType(r.Context(), id)
	if err != nil {
		writeLookupError(w, "get shared type", id, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetTerm handles GET /api/terms/{name}.
//
//	@Summary		Get a term by key, name or alias
//	@Tags			terms
//	@Produce		json
//	@Param			name	path		string	true	"Term key or alias"
//	@Success		200		{object}	models.TermRecord
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/terms/{name} [get]
func (h *Handler) GetTerm(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	t, err := h.svc.Term(r.Context(), name)
	if err != nil {
		writeLookupError(w, "get term", name, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SearchTerms handles GET /api/terms?q=.
//
//	@Summary		Search term definitions
//	@Tags			terms
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/terms [get]
func (h *Handler) SearchTerms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.SearchTerms(r.Context(), q, limit)
	if err != nil {
		writeLookupError(w, "search terms", q, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

// Report handles GET /api/report.
//
//	@Summary		Validation report of the indexed run
//	@Tags			report
//	@Produce		json
//	@Param			file		query		string	false	"Only issues on this file"
//	@Param			kind		query		string	false	"Issue kind"	Enums(parse, terms, naming, structure, orphan)
//	@Param			severity	query		string	false	"Severity"		Enums(error, warning)
//	@Success		200			{object}	queryservice.ReportView
//	@Security		BearerAuth
//	@Router			/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.svc.Report(r.Context(), index.IssueFilter{
		File:     q.Get("file"),
		Kind:     q.Get("kind"),
		Severity: q.Get("severity"),
	})
	if err != nil {
		writeLookupError(w, "report", "", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Orphans handles GET /api/orphans.
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orphans(r.Context())
	if err != nil {
		writeLookupError(w, "orphans", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orphans": o})
}
