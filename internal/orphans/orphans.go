// Package orphans finds source and config files that neither the
// documentation graph nor the import graph reaches.
package orphans

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/report"
)

var sourceExt = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".mjs": {}, ".cjs": {},
	".rs": {}, ".java": {}, ".kt": {}, ".kts": {}, ".scala": {}, ".c": {}, ".h": {}, ".cc": {},
	".cpp": {}, ".hpp": {}, ".cs": {}, ".rb": {}, ".php": {}, ".swift": {}, ".m": {}, ".lua": {},
	".sh": {}, ".bash": {}, ".sql": {}, ".proto": {}, ".vue": {}, ".svelte": {}, ".dart": {},
	".ex": {}, ".exs": {}, ".erl": {}, ".hs": {}, ".ml": {}, ".zig": {}, ".nim": {},
}

var configExt = map[string]struct{}{
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {},
	".env": {}, ".properties": {}, ".xml": {},
}

var configNames = map[string]struct{}{
	"Makefile": {}, "Dockerfile": {}, "Justfile": {}, "Taskfile": {}, "Procfile": {},
	"go.mod": {}, "go.sum": {},
	"package.json": {}, "tsconfig.json": {}, "Cargo.toml": {}, "pyproject.toml": {},
}

var docExt = map[string]struct{}{
	".md": {}, ".mdx": {}, ".rst": {}, ".txt": {}, ".adoc": {},
}

var generatedPatterns = []string{
	"**/*.pb.go", "**/*_gen.go", "**/*.gen.go", "**/*_generated.go", "**/zz_generated*",
	"**/*.pb.*", "**/*_pb2.py", "**/*.min.js", "**/*.min.css", "**/*.lock", "**/*-lock.json",
	"**/go.sum", "**/*.snap",
}

var testPatterns = []string{
	"**/*_test.go", "**/test_*.py", "**/*_test.py", "**/*.test.*", "**/*.spec.*",
	"**/test/**", "**/tests/**", "**/__tests__/**", "**/testdata/**", "**/fixtures/**",
}

// Classify assigns a file to a code kind by its path. Generated and test
// patterns are checked before the extension tables.
func Classify(p string) models.CodeKind {
	p = strings.TrimPrefix(path.Clean(p), "./")
	for _, pat := range generatedPatterns {
		if ok, _ := doublestar.Match(pat, p); ok {
			return models.CodeGenerated
		}
	}
	base := path.Base(p)
	if _, ok := configNames[base]; ok {
		return models.CodeConfig
	}
	ext := strings.ToLower(path.Ext(base))
	if _, ok := docExt[ext]; ok {
		return models.CodeDoc
	}
	for _, pat := range testPatterns {
		if ok, _ := doublestar.Match(pat, p); ok {
			return models.CodeTest
		}
	}
	if _, ok := sourceExt[ext]; ok {
		return models.CodeSource
	}
	if _, ok := configExt[ext]; ok {
		return models.CodeConfig
	}
	return models.CodeOther
}

// Detect returns the orphans among listing, sorted by path. A file is an
// orphan iff it classifies as source or config and its code record has no
// documented_in and no imported_by entries. mentioned holds paths cited
// textually by any document; it only sets the Referenced flag.
func Detect(listing []string, code map[string]*models.CodeRecord, mentioned map[string]struct{}) []models.Orphan {
	var out []models.Orphan
	seen := make(map[string]struct{}, len(listing))
	for _, p := range listing {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		class := Classify(p)
		if class != models.CodeSource && class != models.CodeConfig {
			continue
		}
		if rec, ok := code[p]; ok && (len(rec.DocumentedIn) > 0 || len(rec.ImportedBy) > 0) {
			continue
		}
		_, ref := mentioned[p]
		out = append(out, models.Orphan{Path: p, Class: class, Referenced: ref})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Issues converts orphans into advisory warnings.
func Issues(orphans []models.Orphan) []report.Issue {
	out := make([]report.Issue, 0, len(orphans))
	for _, o := range orphans {
		msg := fmt.Sprintf("%s file is not documented by any feature and not imported by any file", o.Class)
		if o.Referenced {
			msg += " (mentioned in documentation but not listed in code_files)"
		}
		is := report.Warning(report.KindOrphan, o.Path, msg)
		is.Subject = o.Path
		out = append(out, is)
	}
	return out
}
