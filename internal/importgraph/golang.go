package importgraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"golang.org/x/mod/modfile"
)

const goImportQuery = `(import_spec path: (_) @path)`

const goExportQuery = `
(function_declaration name: (identifier) @name)
(type_spec name: (type_identifier) @name)
`

// GoExtractor derives import edges between Go files of the module rooted
// at the corpus root. An import of a module package links the importing
// file to every non-test file of that package.
type GoExtractor struct {
	Store Reader
}

// Graph implements Provider. Without a go.mod at the root it returns an
// empty graph.
func (x GoExtractor) Graph(ctx context.Context, listing []string) (Graph, error) {
	g := Graph{Imports: map[string][]string{}, Exports: map[string][]string{}}

	gomod, err := x.Store.Read("go.mod")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return g, nil
		}
		return Graph{}, fmt.Errorf("importgraph: read go.mod: %w", err)
	}
	module := modfile.ModulePath(gomod)
	if module == "" {
		return g, nil
	}

	packages := make(map[string][]string)
	var files []string
	for _, p := range listing {
		if path.Ext(p) != ".go" {
			continue
		}
		files = append(files, p)
		if !strings.HasSuffix(p, "_test.go") {
			dir := path.Dir(p)
			packages[dir] = append(packages[dir], p)
		}
	}

	lang := golang.GetLanguage()
	imports, err := sitter.NewQuery([]byte(goImportQuery), lang)
	if err != nil {
		return Graph{}, fmt.Errorf("importgraph: compile import query: %w", err)
	}
	defer imports.Close()
	exports, err := sitter.NewQuery([]byte(goExportQuery), lang)
	if err != nil {
		return Graph{}, fmt.Errorf("importgraph: compile export query: %w", err)
	}
	defer exports.Close()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return Graph{}, err
		}
		src, err := x.Store.Read(file)
		if err != nil {
			return Graph{}, fmt.Errorf("importgraph: read %s: %w", file, err)
		}
		tree, err := parser.ParseCtx(ctx, nil, src)
		if err != nil {
			return Graph{}, fmt.Errorf("importgraph: parse %s: %w", file, err)
		}

		var targets []string
		for _, imp := range captures(imports, tree.RootNode(), src) {
			imp = strings.Trim(imp, "\"`")
			if imp != module && !strings.HasPrefix(imp, module+"/") {
				continue
			}
			dir := strings.TrimPrefix(strings.TrimPrefix(imp, module), "/")
			if dir == "" {
				dir = "."
			}
			for _, target := range packages[dir] {
				if target != file {
					targets = append(targets, target)
				}
			}
		}
		if len(targets) > 0 {
			g.Imports[file] = union(nil, targets)
		}

		if !strings.HasSuffix(file, "_test.go") {
			var exported []string
			for _, name := range captures(exports, tree.RootNode(), src) {
				if r := []rune(name); len(r) > 0 && unicode.IsUpper(r[0]) {
					exported = append(exported, name)
				}
			}
			if len(exported) > 0 {
				g.Exports[file] = union(nil, exported)
			}
		}
		tree.Close()
	}
	return g, nil
}

func captures(q *sitter.Query, root *sitter.Node, src []byte) []string {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var out []string
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			out = append(out, c.Node.Content(src))
		}
	}
	sort.Strings(out)
	return out
}
