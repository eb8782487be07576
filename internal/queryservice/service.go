// Package queryservice answers lookups against the mirrored reference
// index for the HTTP and MCP surfaces.
package queryservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/checksum"
	"github.com/starford/archgraph/internal/index"
	"github.com/starford/archgraph/internal/metrics"
	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/naming"
	"github.com/starford/archgraph/internal/refindex"
	"github.com/starford/archgraph/internal/report"
	"github.com/starford/archgraph/internal/storage"
)

// FeatureDetail is a feature record with its derived context.
type FeatureDetail struct {
	*models.FeatureRecord
	Dependents []string       `json:"dependents"`
	Issues     []report.Issue `json:"issues"`
}

// DocumentDetail is the raw content of one corpus document.
type DocumentDetail struct {
	Path     string         `json:"path"`
	Content  string         `json:"content"`
	Checksum string         `json:"checksum"`
	Issues   []report.Issue `json:"issues"`
}

// ReportView is the mirrored report with the run it came from.
type ReportView struct {
	Meta   index.Meta     `json:"meta"`
	Issues []report.Issue `json:"issues"`
}

// GraphNode is a feature in the dependency graph.
type GraphNode struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// GraphLink is a dependencies edge: Source depends on Target.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Service coordinates the mirror and the corpus store.
type Service struct {
	store   storage.Provider
	db      index.Store
	metrics *metrics.Metrics
	surface string
	docDirs []string
}

// NewService creates a service. surface labels query metrics ("http",
// "mcp"); m may be nil. Document only serves markdown files under docDirs.
func NewService(store storage.Provider, db index.Store, m *metrics.Metrics, surface string, docDirs []string) *Service {
	dirs := make([]string, 0, len(docDirs))
	for _, d := range docDirs {
		if d = refindex.NormalizePath(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return &Service{store: store, db: db, metrics: m, surface: surface, docDirs: dirs}
}

func (s *Service) count(record string) {
	s.metrics.Query(s.surface, record)
}

// Meta describes the mirrored run.
func (s *Service) Meta(_ context.Context) (index.Meta, error) {
	return s.db.Meta()
}

// ListFeatures returns every feature, sorted by id.
func (s *Service) ListFeatures(_ context.Context) ([]index.FeatureSummary, error) {
	s.count("features")
	rows, err := s.db.ListFeatures()
	return nonNilSlice(rows), err
}

// Feature returns a feature with its dependents and the issues reported on
// its file.
func (s *Service) Feature(_ context.Context, id string) (*FeatureDetail, error) {
	s.count("feature")
	rec, err := s.db.Feature(id)
	if err != nil {
		return nil, err
	}
	deps, err := s.db.Dependents(id)
	if err != nil {
		return nil, err
	}
	issues, err := s.db.Issues(index.IssueFilter{File: rec.File})
	if err != nil {
		return nil, err
	}
	return &FeatureDetail{FeatureRecord: rec, Dependents: nonNilSlice(deps), Issues: nonNilSlice(issues)}, nil
}

// Code returns the record for a code path. The path is normalized first.
func (s *Service) Code(_ context.Context, p string) (*models.CodeRecord, error) {
	s.count("code")
	return s.db.Code(refindex.NormalizePath(p))
}

// Interface returns an interface edge by id.
func (s *Service) Interface(_ context.Context, id string) (*models.InterfaceEdge, error) {
	s.count("interface")
	return s.db.Interface(strings.TrimSuffix(id, ".md"))
}

// SharedType returns a shared-type group. Ids with unsorted or repeated
// tokens resolve to their canonical group.
func (s *Service) SharedType(_ context.Context, id string) (*models.SharedTypeGroup, error) {
	s.count("shared_type")
	id = strings.TrimSuffix(id, ".md")
	g, err := s.db.SharedType(id)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return g, err
	}
	canonical := naming.CanonicalName(naming.ParseName(id))
	if canonical == id {
		return nil, err
	}
	return s.db.SharedType(canonical)
}

// Term returns a term by key, name or global alias.
func (s *Service) Term(_ context.Context, name string) (*models.TermRecord, error) {
	s.count("term")
	return s.db.Term(name)
}

// SearchTerms runs a term search.
func (s *Service) SearchTerms(_ context.Context, q string, limit int) ([]index.TermHit, error) {
	s.count("term_search")
	if limit <= 0 {
		limit = 20
	}
	hits, err := s.db.SearchTerms(q, limit)
	return nonNilSlice(hits), err
}

// Report returns mirrored issues narrowed by filter.
func (s *Service) Report(_ context.Context, filter index.IssueFilter) (*ReportView, error) {
	s.count("report")
	meta, err := s.db.Meta()
	if err != nil {
		return nil, err
	}
	issues, err := s.db.Issues(filter)
	if err != nil {
		return nil, err
	}
	return &ReportView{Meta: meta, Issues: nonNilSlice(issues)}, nil
}

// Orphans returns the orphans of the mirrored run.
func (s *Service) Orphans(_ context.Context) ([]models.Orphan, error) {
	s.count("orphans")
	o, err := s.db.Orphans()
	return nonNilSlice(o), err
}

// Dependents returns the features that depend on id.
func (s *Service) Dependents(_ context.Context, id string) ([]string, error) {
	s.count("dependents")
	if _, err := s.db.Feature(id); err != nil {
		return nil, err
	}
	d, err := s.db.Dependents(id)
	return nonNilSlice(d), err
}

// Graph returns the feature dependency graph.
func (s *Service) Graph(_ context.Context) ([]GraphNode, []GraphLink, error) {
	s.count("graph")
	rows, err := s.db.ListFeatures()
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]GraphNode, 0, len(rows))
	links := []GraphLink{}
	for _, r := range rows {
		nodes = append(nodes, GraphNode{ID: r.ID, Status: r.Status})
		rec, err := s.db.Feature(r.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range rec.Dependencies {
			links = append(links, GraphLink{Source: r.ID, Target: d})
		}
	}
	return nodes, links, nil
}

// Document reads a corpus document from the store together with the
// issues reported on it. Paths outside the document directories are not
// found.
func (s *Service) Document(_ context.Context, p string) (*DocumentDetail, error) {
	s.count("document")
	p = refindex.NormalizePath(p)
	if !s.isDocument(p) {
		return nil, fmt.Errorf("document %q: %w", p, apperr.ErrNotFound)
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document %q: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	issues, err := s.db.Issues(index.IssueFilter{File: p})
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Path:     p,
		Content:  string(data),
		Checksum: checksum.Sum(data),
		Issues:   nonNilSlice(issues),
	}, nil
}

// isDocument reports whether p is a markdown file inside one of the
// corpus document directories.
func (s *Service) isDocument(p string) bool {
	if path.Ext(p) != ".md" || strings.HasPrefix(p, "../") {
		return false
	}
	for _, d := range s.docDirs {
		if d == "." || strings.HasPrefix(p, d+"/") {
			return true
		}
	}
	return false
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
