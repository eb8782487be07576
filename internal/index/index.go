package index

import (
	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/refindex"
	"github.com/starford/archgraph/internal/report"
)

// Store is the read and replace surface of the mirror. Consumers should
// depend on this interface rather than the concrete *DB type.
type Store interface {
	Replace(snap Snapshot) error
	Meta() (Meta, error)
	Feature(id string) (*models.FeatureRecord, error)
	Code(path string) (*models.CodeRecord, error)
	Interface(id string) (*models.InterfaceEdge, error)
	SharedType(id string) (*models.SharedTypeGroup, error)
	Term(name string) (*models.TermRecord, error)
	SearchTerms(query string, limit int) ([]TermHit, error)
	Dependents(featureID string) ([]string, error)
	ListFeatures() ([]FeatureSummary, error)
	Issues(filter IssueFilter) ([]report.Issue, error)
	Orphans() ([]models.Orphan, error)
	Close() error
}

// Snapshot is everything one run produced.
type Snapshot struct {
	RunID   string
	Index   *refindex.ReferenceIndex
	Report  *report.Report
	Orphans []models.Orphan
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
