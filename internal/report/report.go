// Package report collects validation issues and parse diagnostics produced
// by a run and summarises them for the CLI and the query surfaces.
package report

import (
	"sort"

	"github.com/starford/archgraph/internal/models"
)

// Severity of an issue. Only errors affect the run outcome.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind is the validation error taxonomy.
type Kind string

const (
	KindFormat                Kind = "format"
	KindSorting               Kind = "sorting"
	KindDuplicate             Kind = "duplicate"
	KindFrontmatter           Kind = "frontmatter"
	KindReference             Kind = "reference"
	KindComplexity            Kind = "complexity"
	KindCircularDependency    Kind = "circular_dependency"
	KindInterfaceMismatch     Kind = "interface_mismatch"
	KindUndefinedTerm         Kind = "undefined_term"
	KindConflictingDefinition Kind = "conflicting_definition"
	KindUnusedDefinition      Kind = "unused_definition"
	KindOrphan                Kind = "orphan"
)

// Issue is one validation finding.
type Issue struct {
	Kind       Kind     `json:"kind"`
	Code       string   `json:"code,omitempty"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cycle      []string `json:"cycle,omitempty"`
}

// Error builds an error-severity issue.
func Error(kind Kind, file, msg string) Issue {
	return Issue{Kind: kind, Severity: SeverityError, File: file, Message: msg}
}

// Warning builds a warning-severity issue.
func Warning(kind Kind, file, msg string) Issue {
	return Issue{Kind: kind, Severity: SeverityWarning, File: file, Message: msg}
}

// Report is the collected output of the validators for one run.
type Report struct {
	Issues      []Issue             `json:"issues"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// Summary is the machine-readable run outcome.
type Summary struct {
	OK          bool           `json:"ok"`
	Errors      int            `json:"errors"`
	Warnings    int            `json:"warnings"`
	Diagnostics int            `json:"diagnostics"`
	ByKind      map[string]int `json:"by_kind"`
}

// Add appends issues.
func (r *Report) Add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

// AddDiagnostics appends parse diagnostics.
func (r *Report) AddDiagnostics(diags ...models.Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, diags...)
}

// ErrorCount returns the number of error-severity issues.
func (r *Report) ErrorCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			n++
		}
	}
	return n
}

// WarningCount counts warning issues plus parse diagnostics.
func (r *Report) WarningCount() int {
	n := len(r.Diagnostics)
	for _, is := range r.Issues {
		if is.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// OK reports whether the run succeeded. Warnings never affect it.
func (r *Report) OK() bool {
	return r.ErrorCount() == 0
}

// OfKind returns the issues of the given kind, in report order.
func (r *Report) OfKind(kind Kind) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

// Sort orders issues by file, line, kind and message, and diagnostics by
// file and line, so that output is stable across runs.
func (r *Report) Sort() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		a, b := r.Diagnostics[i], r.Diagnostics[j]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}

// FileGroup holds the issues and diagnostics attached to one file.
type FileGroup struct {
	File        string              `json:"file"`
	Issues      []Issue             `json:"issues,omitempty"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
}

// ByFile groups the report by file, sorted by file path. Issues without a
// file are grouped under the empty path.
func (r *Report) ByFile() []FileGroup {
	idx := make(map[string]*FileGroup)
	get := func(f string) *FileGroup {
		g, ok := idx[f]
		if !ok {
			g = &FileGroup{File: f}
			idx[f] = g
		}
		return g
	}
	for _, is := range r.Issues {
		g := get(is.File)
		g.Issues = append(g.Issues, is)
	}
	for _, d := range r.Diagnostics {
		g := get(d.File)
		g.Diagnostics = append(g.Diagnostics, d)
	}

	files := make([]string, 0, len(idx))
	for f := range idx {
		files = append(files, f)
	}
	sort.Strings(files)

	out := make([]FileGroup, 0, len(files))
	for _, f := range files {
		out = append(out, *idx[f])
	}
	return out
}

// Summary computes the machine-readable summary.
func (r *Report) Summary() Summary {
	s := Summary{
		Errors:      r.ErrorCount(),
		Warnings:    r.WarningCount(),
		Diagnostics: len(r.Diagnostics),
		ByKind:      make(map[string]int),
	}
	for _, is := range r.Issues {
		s.ByKind[string(is.Kind)]++
	}
	s.OK = s.Errors == 0
	return s
}
