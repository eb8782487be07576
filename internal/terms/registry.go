// Package terms aggregates term definitions and references across the
// corpus and resolves references to canonical definitions.
package terms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/report"
)

// Key returns the index key of a definition: the bare name for global
// terms, "file#name" for document-local ones.
func Key(scope models.TermScope, file, name string) string {
	if scope == models.ScopeGlobal {
		return name
	}
	return file + "#" + name
}

type definition struct {
	def   parser.TermDef
	file  string
	scope models.TermScope
}

type reference struct {
	ref  parser.TermRef
	file string
}

// Registry collects definitions and references from parsed documents.
// It is not safe for concurrent use; feed it from the serialized reduce
// phase.
type Registry struct {
	globalScope []string
	defs        []definition
	refs        []reference
}

// NewRegistry creates a registry. globalScope holds directory prefixes or
// doublestar patterns (relative to the corpus root) whose files define
// global terms.
func NewRegistry(globalScope []string) *Registry {
	return &Registry{globalScope: globalScope}
}

// IsGlobal reports whether a file falls under a global-scope directory.
func (r *Registry) IsGlobal(file string) bool {
	for _, pat := range r.globalScope {
		if strings.ContainsAny(pat, "*?[{") {
			if ok, _ := doublestar.Match(pat, file); ok {
				return true
			}
			continue
		}
		dir := strings.TrimSuffix(pat, "/")
		if file == dir || strings.HasPrefix(file, dir+"/") {
			return true
		}
	}
	return false
}

// Add records the definitions and references of one document.
func (r *Registry) Add(doc *parser.Document) {
	scope := models.ScopeDocument
	if r.IsGlobal(doc.Path) {
		scope = models.ScopeGlobal
	}
	for _, d := range doc.Terms {
		r.defs = append(r.defs, definition{def: d, file: doc.Path, scope: scope})
	}
	for _, ref := range doc.References {
		r.refs = append(r.refs, reference{ref: ref, file: doc.Path})
	}
}

// Result is the resolved term graph.
type Result struct {
	Terms  map[string]*models.TermRecord
	Issues []report.Issue

	global      map[string]string
	globalAlias map[string]string
	local       map[string]map[string]string
	localAlias  map[string]map[string]string

	usedBy    map[string][]string
	definedIn map[string][]string
}

// Build resolves every reference and reports undefined, conflicting and
// unused terms. Output is independent of the order documents were added.
func (r *Registry) Build() *Result {
	defs := append([]definition(nil), r.defs...)
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].file != defs[j].file {
			return defs[i].file < defs[j].file
		}
		return defs[i].def.Line < defs[j].def.Line
	})
	refs := append([]reference(nil), r.refs...)
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].file != refs[j].file {
			return refs[i].file < refs[j].file
		}
		if refs[i].ref.Line != refs[j].ref.Line {
			return refs[i].ref.Line < refs[j].ref.Line
		}
		return refs[i].ref.Name < refs[j].ref.Name
	})

	res := &Result{
		Terms:       make(map[string]*models.TermRecord),
		global:      make(map[string]string),
		globalAlias: make(map[string]string),
		local:       make(map[string]map[string]string),
		localAlias:  make(map[string]map[string]string),
		usedBy:      make(map[string][]string),
		definedIn:   make(map[string][]string),
	}

	res.collectDefinitions(defs)
	res.resolveReferences(refs)
	res.reportUnused()

	for _, t := range res.Terms {
		sort.Slice(t.References, func(i, j int) bool {
			if t.References[i].File != t.References[j].File {
				return t.References[i].File < t.References[j].File
			}
			return t.References[i].Line < t.References[j].Line
		})
	}
	return res
}

func (res *Result) collectDefinitions(defs []definition) {
	globalSites := make(map[string][]definition)
	var conflictOrder []string

	for _, d := range defs {
		name := d.def.Name
		key := Key(d.scope, d.file, name)

		if d.scope == models.ScopeGlobal {
			globalSites[name] = append(globalSites[name], d)
			if len(globalSites[name]) == 2 {
				conflictOrder = append(conflictOrder, name)
			}
			if _, exists := res.global[name]; exists {
				continue
			}
			res.global[name] = key
			for _, a := range d.def.Aliases {
				if _, taken := res.globalAlias[a]; !taken {
					res.globalAlias[a] = key
				}
			}
		} else {
			if res.local[d.file] == nil {
				res.local[d.file] = make(map[string]string)
				res.localAlias[d.file] = make(map[string]string)
			}
			if _, exists := res.local[d.file][name]; exists {
				continue
			}
			res.local[d.file][name] = key
			for _, a := range d.def.Aliases {
				if _, taken := res.localAlias[d.file][a]; !taken {
					res.localAlias[d.file][a] = key
				}
			}
		}

		res.Terms[key] = &models.TermRecord{
			Name:         name,
			Scope:        d.scope,
			File:         d.file,
			Line:         d.def.Line,
			Type:         d.def.Type,
			Aliases:      uniqueSorted(d.def.Aliases),
			Related:      uniqueSorted(d.def.Related),
			NotToConfuse: uniqueSorted(d.def.NotToConfuse),
			Parent:       d.def.Parent,
			Definition:   d.def.Definition,
		}
		res.definedIn[d.file] = append(res.definedIn[d.file], key)
	}

	for _, name := range conflictOrder {
		sites := globalSites[name]
		locs := make([]string, 0, len(sites))
		for _, s := range sites {
			locs = append(locs, fmt.Sprintf("%s:%d", s.file, s.def.Line))
		}
		second := sites[1]
		res.Issues = append(res.Issues, report.Issue{
			Kind:     report.KindConflictingDefinition,
			Severity: report.SeverityError,
			File:     second.file,
			Line:     second.def.Line,
			Subject:  name,
			Message: fmt.Sprintf("global term %q is defined %d times: %s",
				name, len(sites), strings.Join(locs, ", ")),
		})
	}
}

func (res *Result) resolveReferences(refs []reference) {
	type site struct {
		name, file string
		line       int
	}
	reported := make(map[site]struct{})
	used := make(map[string]map[string]struct{})

	for _, r := range refs {
		key, ok := res.Resolve(r.ref.Name, r.file)
		if !ok {
			s := site{r.ref.Name, r.file, r.ref.Line}
			if _, dup := reported[s]; dup {
				continue
			}
			reported[s] = struct{}{}
			res.Issues = append(res.Issues, report.Issue{
				Kind:     report.KindUndefinedTerm,
				Severity: report.SeverityError,
				File:     r.file,
				Line:     r.ref.Line,
				Subject:  r.ref.Name,
				Message:  fmt.Sprintf("term %q is not defined globally, locally or as an alias", r.ref.Name),
			})
			continue
		}
		t := res.Terms[key]
		t.References = append(t.References, models.TermUse{File: r.file, Line: r.ref.Line})

		if used[r.file] == nil {
			used[r.file] = make(map[string]struct{})
		}
		if _, seen := used[r.file][key]; !seen {
			used[r.file][key] = struct{}{}
			res.usedBy[r.file] = append(res.usedBy[r.file], key)
		}
	}
}

func (res *Result) reportUnused() {
	keys := make([]string, 0, len(res.Terms))
	for k := range res.Terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := res.Terms[k]
		if t.Scope != models.ScopeGlobal || len(t.References) > 0 {
			continue
		}
		res.Issues = append(res.Issues, report.Issue{
			Kind:     report.KindUnusedDefinition,
			Severity: report.SeverityWarning,
			File:     t.File,
			Line:     t.Line,
			Subject:  t.Name,
			Message:  fmt.Sprintf("global term %q is never referenced", t.Name),
		})
	}
}

// Resolve maps a reference in file to a definition key. Order: global
// canonical name, same-file local name, global alias, same-file alias.
func (res *Result) Resolve(name, file string) (string, bool) {
	if k, ok := res.global[name]; ok {
		return k, true
	}
	if k, ok := res.local[file][name]; ok {
		return k, true
	}
	if k, ok := res.globalAlias[name]; ok {
		return k, true
	}
	if k, ok := res.localAlias[file][name]; ok {
		return k, true
	}
	return "", false
}

// UsedBy returns the sorted definition keys referenced from file.
func (res *Result) UsedBy(file string) []string {
	return uniqueSorted(res.usedBy[file])
}

// DefinedIn returns the sorted definition keys declared in file.
func (res *Result) DefinedIn(file string) []string {
	return uniqueSorted(res.definedIn[file])
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
