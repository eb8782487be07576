// Package importgraph supplies the code import graph the reference index
// uses for imported_by edges. Language analysis lives here, outside the
// graph engine.
package importgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/starford/archgraph/internal/apperr"
)

// Graph maps a file to the files it imports and to the symbols it exports.
// Paths are relative to the corpus root.
type Graph struct {
	Imports map[string][]string `json:"imports"`
	Exports map[string][]string `json:"exports,omitempty"`
}

// Reader reads corpus files. storage.Provider satisfies it.
type Reader interface {
	Read(path string) ([]byte, error)
}

// Provider produces the import graph for a code listing.
type Provider interface {
	Graph(ctx context.Context, listing []string) (Graph, error)
}

// FileProvider loads an externally produced graph from a JSON file of the
// form {"imports": {file: [file...]}, "exports": {file: [symbol...]}}.
type FileProvider struct {
	Store Reader
	Path  string
	// Optional makes a missing file yield an empty graph.
	Optional bool
}

// Graph implements Provider.
func (p FileProvider) Graph(_ context.Context, _ []string) (Graph, error) {
	data, err := p.Store.Read(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if p.Optional {
				return Graph{}, nil
			}
			return Graph{}, fmt.Errorf("importgraph: %s: %w", p.Path, apperr.ErrNotFound)
		}
		return Graph{}, fmt.Errorf("importgraph: read %s: %w", p.Path, err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("importgraph: decode %s: %w", p.Path, err)
	}
	return g, nil
}

// Multi merges the graphs of several providers. The first error aborts.
type Multi []Provider

// Graph implements Provider.
func (m Multi) Graph(ctx context.Context, listing []string) (Graph, error) {
	out := Graph{Imports: map[string][]string{}, Exports: map[string][]string{}}
	for _, p := range m {
		g, err := p.Graph(ctx, listing)
		if err != nil {
			return Graph{}, err
		}
		out.Merge(g)
	}
	return out, nil
}

// Merge adds the edges and exports of other, keeping lists sorted and
// unique.
func (g *Graph) Merge(other Graph) {
	if g.Imports == nil {
		g.Imports = map[string][]string{}
	}
	if g.Exports == nil {
		g.Exports = map[string][]string{}
	}
	for k, v := range other.Imports {
		g.Imports[k] = union(g.Imports[k], v)
	}
	for k, v := range other.Exports {
		g.Exports[k] = union(g.Exports[k], v)
	}
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
