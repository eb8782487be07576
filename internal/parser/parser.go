// Package parser extracts frontmatter, components, terms and
// kind-specific fields from corpus documents.
package parser

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/archgraph/internal/checksum"
	"github.com/starford/archgraph/internal/models"
)

// DefaultCacheSize bounds the per-run scan cache.
const DefaultCacheSize = 2048

var pairPrefixRe = regexp.MustCompile(`^(\d{2}--\d{2})`)

// FeatureFields are the feature-specific frontmatter fields.
type FeatureFields struct {
	ID              string
	Status          string
	EntryPoint      string
	CodeFiles       []string
	TestFiles       []string
	Dependencies    []string
	RelatedFeatures []string
}

// InterfaceFields are the interface-specific fields.
type InterfaceFields struct {
	ID        string
	From      string
	To        string
	Type      string
	PairToken string
}

// SharedTypeFields are the shared-type fields. Tokens come from the file
// name; Interfaces from the frontmatter array of the same name.
type SharedTypeFields struct {
	Stem          string
	Tokens        []string
	Type          string
	Status        string
	Interfaces    []string
	HasInterfaces bool
}

// Document is the raw record extracted from one file. Slices may be shared
// with the scan cache and must be treated as read-only.
type Document struct {
	Path        string
	Kind        models.DocKind
	Checksum    string
	Text        string
	Frontmatter Frontmatter
	Components  []models.Component
	Terms       []TermDef
	References  []TermRef
	Mentions    []string
	Diagnostics []models.Diagnostic

	Feature    *FeatureFields
	Interface  *InterfaceFields
	SharedType *SharedTypeFields
}

// scan is the path-independent part of a parse, cached by content hash.
type scan struct {
	frontmatter Frontmatter
	components  []models.Component
	terms       termScan
	diags       []models.Diagnostic
}

// Options configures a parse Context.
type Options struct {
	CacheSize int
	Lookahead int
	Matchers  []ComponentMatcher
}

// Context carries state for one run: the content-hash keyed scan cache and
// the component matchers. Create one per run and share it between workers.
type Context struct {
	cache     *lru.Cache[string, *scan]
	matchers  []ComponentMatcher
	lookahead int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewContext creates a parse context.
func NewContext(opts Options) (*Context, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if len(opts.Matchers) == 0 {
		opts.Matchers = DefaultMatchers()
	}
	cache, err := lru.New[string, *scan](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("parser: create cache: %w", err)
	}
	return &Context{cache: cache, matchers: opts.Matchers, lookahead: opts.Lookahead}, nil
}

// CacheStats returns the scan cache hit and miss counts.
func (c *Context) CacheStats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Parse extracts the raw record for one document. It never fails: problems
// with recognized constructs become diagnostics, unrecognized syntax is
// skipped.
func (c *Context) Parse(p string, kind models.DocKind, data []byte) *Document {
	sum := checksum.Sum(data)
	key := string(kind) + ":" + sum

	sc, ok := c.cache.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
		sc = c.scan(data)
		c.cache.Add(key, sc)
	}

	doc := &Document{
		Path:        p,
		Kind:        kind,
		Checksum:    sum,
		Text:        string(data),
		Frontmatter: sc.frontmatter,
		Components:  sc.components,
		Terms:       sc.terms.defs,
		References:  sc.terms.refs,
		Mentions:    sc.terms.mentions,
	}
	for _, d := range sc.diags {
		d.File = p
		doc.Diagnostics = append(doc.Diagnostics, d)
	}

	switch kind {
	case models.DocFeature:
		doc.Feature = featureFields(p, sc.frontmatter)
	case models.DocInterface:
		doc.Interface = interfaceFields(p, sc.frontmatter)
	case models.DocSharedType:
		doc.SharedType = sharedTypeFields(p, sc.frontmatter)
	}
	return doc
}

func (c *Context) scan(data []byte) *scan {
	lines := splitLines(string(data))
	fm, bodyStart, diags := scanFrontmatter(lines)

	fenced := make([]bool, len(lines))
	var ft fenceTracker
	for i := bodyStart; i < len(lines); i++ {
		fenced[i] = ft.step(lines[i])
	}

	cs := newComponentScanner(c.matchers, c.lookahead)
	for i := bodyStart; i < len(lines); i++ {
		if fenced[i] {
			continue
		}
		cs.step(i+1, lines[i])
	}
	cs.finish()

	diags = append(diags, cs.diags...)
	return &scan{
		frontmatter: fm,
		components:  cs.components,
		terms:       scanTerms(lines, bodyStart, fenced),
		diags:       diags,
	}
}

// Stem returns the file name without directory and .md extension.
func Stem(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}

func featureFields(p string, fm Frontmatter) *FeatureFields {
	id := fm.Scalar("feature")
	if id == "" {
		id = Stem(p)
	}
	code := append([]string{}, fm.List("code_files")...)
	code = append(code, fm.List("code_references")...)
	return &FeatureFields{
		ID:              id,
		Status:          fm.Scalar("status"),
		EntryPoint:      fm.Scalar("entry_point"),
		CodeFiles:       code,
		TestFiles:       fm.List("test_files"),
		Dependencies:    fm.List("dependencies"),
		RelatedFeatures: fm.List("related_features"),
	}
}

func interfaceFields(p string, fm Frontmatter) *InterfaceFields {
	id := fm.Scalar("id")
	if id == "" {
		id = Stem(p)
	}
	var pair string
	if m := pairPrefixRe.FindStringSubmatch(id); m != nil {
		pair = m[1]
	}
	return &InterfaceFields{
		ID:        id,
		From:      fm.Scalar("from"),
		To:        fm.Scalar("to"),
		Type:      fm.Scalar("type"),
		PairToken: pair,
	}
}

func sharedTypeFields(p string, fm Frontmatter) *SharedTypeFields {
	stem := Stem(p)
	return &SharedTypeFields{
		Stem:          stem,
		Tokens:        strings.Split(stem, "_"),
		Type:          fm.Scalar("type"),
		Status:        fm.Scalar("status"),
		Interfaces:    fm.List("interfaces"),
		HasInterfaces: fm.Has("interfaces"),
	}
}
