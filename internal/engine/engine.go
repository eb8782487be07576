// Package engine runs one index pass over a corpus snapshot: it lists and
// parses documents, assembles the reference index and runs the validators.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/importgraph"
	"github.com/starford/archgraph/internal/metrics"
	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/naming"
	"github.com/starford/archgraph/internal/orphans"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/refindex"
	"github.com/starford/archgraph/internal/report"
	"github.com/starford/archgraph/internal/storage"
	"github.com/starford/archgraph/internal/structure"
	"github.com/starford/archgraph/internal/terms"
)

// Options is the immutable configuration snapshot of a run.
type Options struct {
	FeaturesDir    string
	InterfacesDir  string
	SharedTypesDir string
	TermsDir       string

	// GlobalTermScope lists directories or doublestar patterns whose files
	// define global terms.
	GlobalTermScope []string

	NamingWarnThreshold int
	NamingMaxThreshold  int

	Walk storage.WalkOptions
	// FailOnOrphans reports orphans as errors instead of warnings.
	FailOnOrphans bool

	// IndexPath is where WriteIndex puts the artifact, relative to the root.
	IndexPath string

	Parallelism    int
	ParseCacheSize int
	Lookahead      int

	Now func() time.Time
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Index     *refindex.ReferenceIndex
	Report    *report.Report
	Orphans   []models.Orphan
	Documents map[models.DocKind]int
	Duration  time.Duration
}

// Engine runs index passes against one store.
type Engine struct {
	opts    Options
	store   storage.Provider
	imports importgraph.Provider
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an engine. imports may be nil for an empty import graph;
// m may be nil to skip metrics.
func New(opts Options, store storage.Provider, imports importgraph.Provider, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, store: store, imports: imports, logger: logger, metrics: m}
}

type job struct {
	path string
	kind models.DocKind
}

// Run executes one pass. The returned error is non-nil only for fatal
// failures and then wraps apperr.ErrFatal; validation problems are in the
// result's report.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := e.logger.With(slog.String("run_id", runID))

	res, err := e.run(ctx, logger)
	elapsed := time.Since(start)
	if err != nil {
		e.metrics.ObserveRun("fatal", elapsed)
		logger.Error("run aborted", slog.String("error", err.Error()))
		return nil, err
	}
	res.RunID = runID
	res.Duration = elapsed

	outcome := "ok"
	if !res.Report.OK() {
		outcome = "failed"
	}
	e.metrics.ObserveRun(outcome, elapsed)
	if e.metrics != nil {
		e.metrics.Issues.Reset()
		for _, is := range res.Report.Issues {
			e.metrics.Issues.WithLabelValues(string(is.Kind), string(is.Severity)).Inc()
		}
		for kind, n := range res.Documents {
			e.metrics.Documents.WithLabelValues(string(kind)).Set(float64(n))
		}
	}

	summary := res.Report.Summary()
	logger.Info("run finished",
		slog.Int("features", res.Documents[models.DocFeature]),
		slog.Int("interfaces", res.Documents[models.DocInterface]),
		slog.Int("shared_types", res.Documents[models.DocSharedType]),
		slog.Int("errors", summary.Errors),
		slog.Int("warnings", summary.Warnings),
		slog.Int("orphans", len(res.Orphans)),
		slog.Duration("elapsed", elapsed))
	return res, nil
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger) (*Result, error) {
	listing, err := e.store.Walk(e.opts.Walk)
	if err != nil {
		return nil, fatal("walk corpus", err)
	}

	var jobs []job
	for _, src := range []struct {
		dir  string
		kind models.DocKind
	}{
		{e.opts.FeaturesDir, models.DocFeature},
		{e.opts.InterfacesDir, models.DocInterface},
		{e.opts.SharedTypesDir, models.DocSharedType},
		{e.opts.TermsDir, models.DocTerms},
	} {
		if src.dir == "" {
			continue
		}
		metas, err := e.store.ListDocs(src.dir)
		if err != nil {
			return nil, fatal("list "+src.dir, err)
		}
		for _, m := range metas {
			jobs = append(jobs, job{path: m.Path, kind: src.kind})
		}
	}
	logger.Debug("corpus listed", slog.Int("documents", len(jobs)), slog.Int("files", len(listing)))

	docs, err := e.parseAll(ctx, jobs)
	if err != nil {
		return nil, err
	}

	graph := importgraph.Graph{}
	if e.imports != nil {
		graph, err = e.imports.Graph(ctx, listing)
		if err != nil {
			return nil, fatal("import graph", err)
		}
	}

	return e.reduce(docs, listing, graph), nil
}

// parseAll is the map phase. Workers share only the parse context; each
// writes its own slot of the result slice.
func (e *Engine) parseAll(ctx context.Context, jobs []job) ([]*parser.Document, error) {
	pc, err := parser.NewContext(parser.Options{CacheSize: e.opts.ParseCacheSize, Lookahead: e.opts.Lookahead})
	if err != nil {
		return nil, fatal("parser context", err)
	}

	docs := make([]*parser.Document, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := e.store.Read(j.path)
			if err != nil {
				return fatal("read "+j.path, err)
			}
			docs[i] = pc.Parse(j.path, j.kind, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		hits, misses := pc.CacheStats()
		e.metrics.CacheHits.Add(float64(hits))
		e.metrics.CacheMisses.Add(float64(misses))
	}
	return docs, nil
}

// reduce is serialized: it needs a total order over documents.
func (e *Engine) reduce(docs []*parser.Document, listing []string, graph importgraph.Graph) *Result {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	var features, interfaces, shared []*parser.Document
	counts := make(map[models.DocKind]int)
	rep := &report.Report{}
	reg := terms.NewRegistry(e.opts.GlobalTermScope)
	mentioned := make(map[string]struct{})

	for _, d := range docs {
		counts[d.Kind]++
		switch d.Kind {
		case models.DocFeature:
			features = append(features, d)
		case models.DocInterface:
			interfaces = append(interfaces, d)
		case models.DocSharedType:
			shared = append(shared, d)
		}
		reg.Add(d)
		rep.AddDiagnostics(d.Diagnostics...)
		for _, m := range d.Mentions {
			mentioned[refindex.NormalizePath(m)] = struct{}{}
		}
	}

	termResult := reg.Build()
	idx := refindex.Build(refindex.Input{
		Features:    features,
		Interfaces:  interfaces,
		SharedTypes: shared,
		Listing:     listing,
		Imports:     graph.Imports,
		Exports:     graph.Exports,
		Terms:       termResult,
		Now:         e.opts.Now,
	})

	rep.Add(termResult.Issues...)
	rep.Add(naming.New(e.opts.NamingWarnThreshold, e.opts.NamingMaxThreshold).CheckAll(shared)...)
	rep.Add(structure.Check(structure.Input{Index: idx, Features: features, Interfaces: interfaces})...)

	found := orphans.Detect(listing, idx.Code, mentioned)
	orphanIssues := orphans.Issues(found)
	if e.opts.FailOnOrphans {
		for i := range orphanIssues {
			orphanIssues[i].Severity = report.SeverityError
		}
	}
	rep.Add(orphanIssues...)
	rep.Sort()

	return &Result{Index: idx, Report: rep, Orphans: found, Documents: counts}
}

// WriteIndex persists the artifact of a successful run atomically.
func (e *Engine) WriteIndex(res *Result) error {
	if e.opts.IndexPath == "" {
		return fmt.Errorf("%w: engine: index path is empty", apperr.ErrFatal)
	}
	if err := refindex.Save(e.store, e.opts.IndexPath, res.Index); err != nil {
		return fatal("write index", err)
	}
	e.logger.Info("index written", slog.String("path", e.opts.IndexPath), slog.String("run_id", res.RunID))
	return nil
}

func fatal(op string, err error) error {
	return fmt.Errorf("%w: engine: %s: %w", apperr.ErrFatal, op, err)
}
