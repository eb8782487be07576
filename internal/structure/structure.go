// Package structure checks the assembled reference index for dependency
// cycles, one-sided interfaces and incomplete frontmatter.
package structure

import (
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/refindex"
	"github.com/starford/archgraph/internal/report"
)

// Interface mismatch codes.
const (
	CodeFromNotFound  = "from_not_found"
	CodeToNotFound    = "to_not_found"
	CodeNotReferenced = "not_referenced"
)

// Required frontmatter fields per document kind.
var (
	FeatureRequired   = []string{"feature", "status", "entry_point"}
	InterfaceRequired = []string{"from", "to", "type"}
)

// Input is what the checker reads. Documents are only used for their
// frontmatter and text; relationships come from the index.
type Input struct {
	Index      *refindex.ReferenceIndex
	Features   []*parser.Document
	Interfaces []*parser.Document
}

// Check runs every structural check and returns the issues in a stable
// order.
func Check(in Input) []report.Issue {
	var out []report.Issue
	out = append(out, CheckFrontmatter(in.Features, FeatureRequired)...)
	out = append(out, CheckFrontmatter(in.Interfaces, InterfaceRequired)...)
	out = append(out, CheckDuplicateIDs(in.Features, in.Interfaces)...)
	if in.Index != nil {
		out = append(out, CheckCycles(in.Index)...)
		out = append(out, CheckInterfaces(in.Index, featureTexts(in.Features))...)
		out = append(out, CheckReferences(in.Index)...)
	}
	return out
}

// DependencyGraph builds the directed feature graph. Only the dependencies
// field contributes edges; related_features is a non-directional
// cross-reference.
func DependencyGraph(idx *refindex.ReferenceIndex) Graph {
	g := make(Graph, len(idx.Features))
	for id, f := range idx.Features {
		g[id] = append([]string(nil), f.Dependencies...)
	}
	return g
}

// CheckCycles reports one circular_dependency error per distinct cycle.
func CheckCycles(idx *refindex.ReferenceIndex) []report.Issue {
	var out []report.Issue
	for _, cycle := range FindCycles(DependencyGraph(idx)) {
		head := cycle[0]
		file := ""
		if f, ok := idx.Features[head]; ok {
			file = f.File
		}
		is := report.Error(report.KindCircularDependency, file,
			"dependency cycle: "+strings.Join(cycle, " -> "))
		is.Subject = head
		is.Cycle = cycle
		out = append(out, is)
	}
	return out
}

// CheckInterfaces verifies each edge from=A, to=B: A and B must exist and
// A's document text must mention the interface id. texts maps feature id
// to document text.
func CheckInterfaces(idx *refindex.ReferenceIndex, texts map[string]string) []report.Issue {
	ids := make([]string, 0, len(idx.Interfaces))
	for id := range idx.Interfaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []report.Issue
	for _, id := range ids {
		e := idx.Interfaces[id]
		from, fromOK := idx.Features[e.From]
		_, toOK := idx.Features[e.To]

		if e.From != "" && !fromOK {
			out = append(out, mismatch(e, e.File, CodeFromNotFound,
				fmt.Sprintf("interface %s: from feature %q does not exist", id, e.From)))
		}
		if e.To != "" && !toOK {
			out = append(out, mismatch(e, e.File, CodeToNotFound,
				fmt.Sprintf("interface %s: to feature %q does not exist", id, e.To)))
		}
		if fromOK && !strings.Contains(texts[e.From], id) {
			is := mismatch(e, from.File, CodeNotReferenced,
				fmt.Sprintf("feature %q uses interface %s but its document never mentions it", e.From, id))
			is.Suggestion = fmt.Sprintf("reference %s from %s", id, from.File)
			out = append(out, is)
		}
	}
	return out
}

func mismatch(e *models.InterfaceEdge, file, code, msg string) report.Issue {
	is := report.Error(report.KindInterfaceMismatch, file, msg)
	is.Code = code
	is.Subject = e.ID
	return is
}

// CheckFrontmatter reports one frontmatter error per missing required
// field.
func CheckFrontmatter(docs []*parser.Document, required []string) []report.Issue {
	var out []report.Issue
	for _, doc := range docs {
		for _, key := range required {
			err := validation.Validate(strings.TrimSpace(doc.Frontmatter.Scalar(key)), validation.Required)
			if err == nil {
				continue
			}
			msg := fmt.Sprintf("required field %q is missing", key)
			if doc.Frontmatter.IsArray(key) {
				msg = fmt.Sprintf("required field %q must be a scalar", key)
			}
			is := report.Error(report.KindFrontmatter, doc.Path, msg)
			is.Subject = key
			out = append(out, is)
		}
	}
	return out
}

// CheckDuplicateIDs reports feature and interface ids claimed by more than
// one document. The document with the smaller path keeps the id.
func CheckDuplicateIDs(features, interfaces []*parser.Document) []report.Issue {
	var out []report.Issue
	out = append(out, duplicateIDs("feature", features, func(d *parser.Document) string {
		if d.Feature == nil {
			return ""
		}
		return d.Feature.ID
	})...)
	out = append(out, duplicateIDs("interface", interfaces, func(d *parser.Document) string {
		if d.Interface == nil {
			return ""
		}
		return d.Interface.ID
	})...)
	return out
}

func duplicateIDs(kind string, docs []*parser.Document, idOf func(*parser.Document) string) []report.Issue {
	sorted := append([]*parser.Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	owner := make(map[string]string)
	var out []report.Issue
	for _, d := range sorted {
		id := idOf(d)
		if id == "" {
			continue
		}
		if first, ok := owner[id]; ok {
			is := report.Error(report.KindDuplicate, d.Path,
				fmt.Sprintf("%s id %q is already used by %s", kind, id, first))
			is.Subject = id
			out = append(out, is)
			continue
		}
		owner[id] = d.Path
	}
	return out
}

// CheckReferences warns about dependencies on unknown features and code
// references that are missing from the code listing.
func CheckReferences(idx *refindex.ReferenceIndex) []report.Issue {
	ids := make([]string, 0, len(idx.Features))
	for id := range idx.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []report.Issue
	for _, id := range ids {
		f := idx.Features[id]
		for _, dep := range f.Dependencies {
			if _, ok := idx.Features[dep]; !ok {
				is := report.Warning(report.KindReference, f.File,
					fmt.Sprintf("dependency %q is not a known feature", dep))
				is.Subject = dep
				out = append(out, is)
			}
		}
		for _, rel := range f.RelatedFeatures {
			if _, ok := idx.Features[rel]; !ok {
				is := report.Warning(report.KindReference, f.File,
					fmt.Sprintf("related feature %q is not a known feature", rel))
				is.Subject = rel
				out = append(out, is)
			}
		}
		for _, p := range append(append([]string(nil), f.CodeRefs...), f.TestFiles...) {
			if c, ok := idx.Code[p]; ok && c.Exists {
				continue
			}
			is := report.Warning(report.KindReference, f.File,
				fmt.Sprintf("code file %q is not in the code listing", p))
			is.Subject = p
			out = append(out, is)
		}
	}
	return out
}

func featureTexts(docs []*parser.Document) map[string]string {
	sorted := append([]*parser.Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	out := make(map[string]string, len(docs))
	for _, d := range sorted {
		if d.Feature == nil {
			continue
		}
		if _, ok := out[d.Feature.ID]; !ok {
			out[d.Feature.ID] = d.Text
		}
	}
	return out
}
