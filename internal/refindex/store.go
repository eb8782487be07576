package refindex

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/models"
)

// Writer persists bytes atomically. storage.Provider satisfies it.
type Writer interface {
	Write(path string, content []byte) error
}

// Marshal encodes the index. Map keys are emitted in sorted order so equal
// indexes encode to equal bytes.
func Marshal(idx *ReferenceIndex) ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("refindex: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes an artifact and rejects unknown versions.
func Unmarshal(data []byte) (*ReferenceIndex, error) {
	var idx ReferenceIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("refindex: unmarshal: %w", err)
	}
	if idx.Version != Version {
		return nil, fmt.Errorf("refindex: unsupported version %d", idx.Version)
	}
	if idx.Features == nil {
		idx.Features = make(map[string]*models.FeatureRecord)
	}
	if idx.Code == nil {
		idx.Code = make(map[string]*models.CodeRecord)
	}
	if idx.Interfaces == nil {
		idx.Interfaces = make(map[string]*models.InterfaceEdge)
	}
	if idx.Terms == nil {
		idx.Terms = make(map[string]*models.TermRecord)
	}
	if idx.SharedTypes == nil {
		idx.SharedTypes = make(map[string]*models.SharedTypeGroup)
	}
	return &idx, nil
}

// Save encodes the index and hands it to w in one atomic write.
func Save(w Writer, path string, idx *ReferenceIndex) error {
	data, err := Marshal(idx)
	if err != nil {
		return err
	}
	if err := w.Write(path, data); err != nil {
		return fmt.Errorf("refindex: save %s: %w", path, err)
	}
	return nil
}

// Load reads an artifact from an absolute or working-directory path.
func Load(path string) (*ReferenceIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("refindex: load %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("refindex: load %s: %w", path, err)
	}
	return Unmarshal(data)
}

// Feature returns the feature with the given id.
func (idx *ReferenceIndex) Feature(id string) (*models.FeatureRecord, error) {
	if f, ok := idx.Features[id]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("feature %q: %w", id, apperr.ErrNotFound)
}

// CodeFile returns the code record for a path.
func (idx *ReferenceIndex) CodeFile(p string) (*models.CodeRecord, error) {
	if c, ok := idx.Code[NormalizePath(p)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("code %q: %w", p, apperr.ErrNotFound)
}

// Interface returns the interface edge with the given id.
func (idx *ReferenceIndex) Interface(id string) (*models.InterfaceEdge, error) {
	if e, ok := idx.Interfaces[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("interface %q: %w", id, apperr.ErrNotFound)
}

// SharedType returns a group by canonical id. Tokens in any order are
// accepted and canonicalized first.
func (idx *ReferenceIndex) SharedType(id string) (*models.SharedTypeGroup, error) {
	if g, ok := idx.SharedTypes[id]; ok {
		return g, nil
	}
	tokens := strings.Split(strings.TrimSuffix(id, ".md"), "_")
	sort.Strings(tokens)
	if g, ok := idx.SharedTypes[strings.Join(dedupe(tokens), "_")]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("shared type %q: %w", id, apperr.ErrNotFound)
}

// GroupsForToken returns every shared-type group listing the pair token,
// sorted by id.
func (idx *ReferenceIndex) GroupsForToken(token string) []*models.SharedTypeGroup {
	var out []*models.SharedTypeGroup
	for _, g := range idx.SharedTypes {
		if contains(g.Interfaces, token) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Term looks a term up by key (a global name or "file#name"), then by
// alias of a global term.
func (idx *ReferenceIndex) Term(name string) (*models.TermRecord, error) {
	if t, ok := idx.Terms[name]; ok {
		return t, nil
	}
	keys := make([]string, 0, len(idx.Terms))
	for k := range idx.Terms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := idx.Terms[k]
		if t.Scope == models.ScopeGlobal && contains(t.Aliases, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("term %q: %w", name, apperr.ErrNotFound)
}

// Dependents returns the ids of features whose dependencies include id.
func (idx *ReferenceIndex) Dependents(id string) []string {
	var out []string
	for fid, f := range idx.Features {
		if contains(f.Dependencies, id) {
			out = append(out, fid)
		}
	}
	sort.Strings(out)
	return out
}

func dedupe(sorted []string) []string {
	out := sorted[:0:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}
