// Package refindex assembles the bidirectional reference index from parsed
// documents, the term registry and the code import graph, and persists it
// as a versioned JSON artifact.
package refindex

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/naming"
	"github.com/starford/archgraph/internal/orphans"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/terms"
)

// Version is the artifact format version.
const Version = 1

// ReferenceIndex is the assembled graph. Every sub-map is keyed by the
// record's canonical id.
type ReferenceIndex struct {
	Version     int                                `json:"version"`
	Generated   time.Time                          `json:"generated"`
	Features    map[string]*models.FeatureRecord   `json:"features"`
	Code        map[string]*models.CodeRecord      `json:"code"`
	Interfaces  map[string]*models.InterfaceEdge   `json:"interfaces"`
	Terms       map[string]*models.TermRecord      `json:"terms"`
	SharedTypes map[string]*models.SharedTypeGroup `json:"shared_types"`
}

// Input is everything Build consumes. Documents must already be parsed.
type Input struct {
	Features    []*parser.Document
	Interfaces  []*parser.Document
	SharedTypes []*parser.Document
	// Listing is the filtered code listing, relative to the corpus root.
	Listing []string
	// Imports maps a file to the files it imports.
	Imports map[string][]string
	// Exports maps a file to the symbols it exports.
	Exports map[string][]string
	Terms   *terms.Result
	// Now stamps the artifact. Defaults to time.Now.
	Now func() time.Time
}

// Build assembles the index. It does no I/O and is deterministic apart
// from the generation timestamp. When two documents claim the same id the
// one with the smaller path wins.
func Build(in Input) *ReferenceIndex {
	now := in.Now
	if now == nil {
		now = time.Now
	}
	idx := &ReferenceIndex{
		Version:     Version,
		Generated:   now().UTC().Truncate(time.Second),
		Features:    make(map[string]*models.FeatureRecord),
		Code:        make(map[string]*models.CodeRecord),
		Interfaces:  make(map[string]*models.InterfaceEdge),
		Terms:       make(map[string]*models.TermRecord),
		SharedTypes: make(map[string]*models.SharedTypeGroup),
	}

	for _, p := range in.Listing {
		idx.code(NormalizePath(p)).Exists = true
	}

	for _, doc := range sortedDocs(in.Features) {
		idx.addFeature(doc, in.Terms)
	}
	for from, tos := range in.Imports {
		from = NormalizePath(from)
		src := idx.code(from)
		for _, to := range tos {
			to = NormalizePath(to)
			if to == from {
				continue
			}
			src.Imports = append(src.Imports, to)
			idx.code(to).ImportedBy = append(idx.code(to).ImportedBy, from)
		}
	}
	for file, syms := range in.Exports {
		rec := idx.code(NormalizePath(file))
		rec.Exports = append(rec.Exports, syms...)
	}
	for _, doc := range sortedDocs(in.SharedTypes) {
		idx.addSharedType(doc)
	}
	for _, doc := range sortedDocs(in.Interfaces) {
		idx.addInterface(doc)
	}
	if in.Terms != nil {
		for k, t := range in.Terms.Terms {
			cp := *t
			cp.References = append([]models.TermUse(nil), t.References...)
			idx.Terms[k] = &cp
		}
	}

	idx.normalize()
	return idx
}

// NormalizePath cleans a corpus-relative code path: slash separators, no
// leading "./" or "/".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

func (idx *ReferenceIndex) code(p string) *models.CodeRecord {
	rec, ok := idx.Code[p]
	if !ok {
		rec = &models.CodeRecord{Path: p, Kind: orphans.Classify(p)}
		idx.Code[p] = rec
	}
	return rec
}

func (idx *ReferenceIndex) addFeature(doc *parser.Document, tr *terms.Result) {
	f := doc.Feature
	if f == nil {
		return
	}
	if _, dup := idx.Features[f.ID]; dup {
		return
	}
	rec := &models.FeatureRecord{
		ID:              f.ID,
		File:            doc.Path,
		Status:          f.Status,
		EntryPoint:      NormalizePath(f.EntryPoint),
		RelatedFeatures: f.RelatedFeatures,
		Dependencies:    f.Dependencies,
		Components:      append([]models.Component(nil), doc.Components...),
	}
	for _, p := range f.CodeFiles {
		rec.CodeRefs = append(rec.CodeRefs, NormalizePath(p))
	}
	for _, c := range doc.Components {
		rec.CodeRefs = append(rec.CodeRefs, NormalizePath(c.Path))
	}
	if rec.EntryPoint != "" {
		rec.CodeRefs = append(rec.CodeRefs, rec.EntryPoint)
	}
	for _, p := range f.TestFiles {
		rec.TestFiles = append(rec.TestFiles, NormalizePath(p))
	}
	if tr != nil {
		rec.TermsDefined = tr.DefinedIn(doc.Path)
		rec.TermsUsed = tr.UsedBy(doc.Path)
	}
	idx.Features[f.ID] = rec

	for _, p := range append(append([]string(nil), rec.CodeRefs...), rec.TestFiles...) {
		if p == "" {
			continue
		}
		c := idx.code(p)
		c.DocumentedIn = append(c.DocumentedIn, f.ID)
	}
}

func (idx *ReferenceIndex) addSharedType(doc *parser.Document) {
	st := doc.SharedType
	if st == nil {
		return
	}
	id := naming.CanonicalName(st.Tokens)
	if _, dup := idx.SharedTypes[id]; dup {
		return
	}
	idx.SharedTypes[id] = &models.SharedTypeGroup{
		ID:         id,
		File:       doc.Path,
		Status:     st.Status,
		Interfaces: append([]string(nil), st.Interfaces...),
	}
}

func (idx *ReferenceIndex) addInterface(doc *parser.Document) {
	in := doc.Interface
	if in == nil {
		return
	}
	if _, dup := idx.Interfaces[in.ID]; dup {
		return
	}
	edge := &models.InterfaceEdge{
		ID:        in.ID,
		File:      doc.Path,
		From:      in.From,
		To:        in.To,
		Type:      in.Type,
		PairToken: in.PairToken,
	}
	if in.PairToken != "" {
		for _, g := range idx.SharedTypes {
			if contains(g.Interfaces, in.PairToken) {
				edge.SharedTypeGroups = append(edge.SharedTypeGroups, g.ID)
			}
		}
	}
	idx.Interfaces[in.ID] = edge

	// from uses to; to provides the interface.
	if f, ok := idx.Features[in.From]; ok {
		f.InterfacesUsed = append(f.InterfacesUsed, in.ID)
	}
	if f, ok := idx.Features[in.To]; ok {
		f.InterfacesProvided = append(f.InterfacesProvided, in.ID)
	}
}

// normalize sorts and de-duplicates every slice so serialization is
// independent of input order.
func (idx *ReferenceIndex) normalize() {
	for _, f := range idx.Features {
		f.CodeRefs = uniqueSorted(f.CodeRefs)
		f.RelatedFeatures = uniqueSorted(f.RelatedFeatures)
		f.Dependencies = uniqueSorted(f.Dependencies)
		f.InterfacesProvided = uniqueSorted(f.InterfacesProvided)
		f.InterfacesUsed = uniqueSorted(f.InterfacesUsed)
		f.TermsDefined = uniqueSorted(f.TermsDefined)
		f.TermsUsed = uniqueSorted(f.TermsUsed)
		f.TestFiles = uniqueSorted(f.TestFiles)
		if len(f.Components) == 0 {
			f.Components = nil
		}
		sort.SliceStable(f.Components, func(i, j int) bool { return f.Components[i].Line < f.Components[j].Line })
	}
	delete(idx.Code, "")
	for _, c := range idx.Code {
		c.DocumentedIn = uniqueSorted(c.DocumentedIn)
		c.Imports = uniqueSorted(c.Imports)
		c.ImportedBy = uniqueSorted(c.ImportedBy)
		c.Exports = uniqueSorted(c.Exports)
	}
	for _, e := range idx.Interfaces {
		e.SharedTypeGroups = uniqueSorted(e.SharedTypeGroups)
	}
	for _, g := range idx.SharedTypes {
		g.Interfaces = uniqueSorted(g.Interfaces)
	}
	for _, t := range idx.Terms {
		t.Aliases = uniqueSorted(t.Aliases)
		t.Related = uniqueSorted(t.Related)
		t.NotToConfuse = uniqueSorted(t.NotToConfuse)
		if len(t.References) == 0 {
			t.References = nil
		}
		sort.SliceStable(t.References, func(i, j int) bool {
			a, b := t.References[i], t.References[j]
			if a.File != b.File {
				return a.File < b.File
			}
			return a.Line < b.Line
		})
	}
}

func sortedDocs(in []*parser.Document) []*parser.Document {
	out := append([]*parser.Document(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
