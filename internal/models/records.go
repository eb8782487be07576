// Package models defines the records that make up the reference index.
package models

// CodeKind classifies a file in the code listing.
type CodeKind string

const (
	CodeSource    CodeKind = "source"
	CodeTest      CodeKind = "test"
	CodeConfig    CodeKind = "config"
	CodeGenerated CodeKind = "generated"
	CodeDoc       CodeKind = "doc"
	CodeOther     CodeKind = "other"
)

// TermScope is the visibility of a term definition.
type TermScope string

const (
	ScopeGlobal   TermScope = "global"
	ScopeDocument TermScope = "document"
)

// Component is a code component named inside a feature document's
// Architecture, Components or Implementation section.
type Component struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Line int    `json:"line"`
}

// FeatureRecord is one feature document.
type FeatureRecord struct {
	ID                 string      `json:"id"`
	File               string      `json:"file"`
	Status             string      `json:"status,omitempty"`
	EntryPoint         string      `json:"entry_point,omitempty"`
	CodeRefs           []string    `json:"code_refs,omitempty"`
	Components         []Component `json:"components,omitempty"`
	RelatedFeatures    []string    `json:"related_features,omitempty"`
	Dependencies       []string    `json:"dependencies,omitempty"`
	InterfacesProvided []string    `json:"interfaces_provided,omitempty"`
	InterfacesUsed     []string    `json:"interfaces_used,omitempty"`
	TermsDefined       []string    `json:"terms_defined,omitempty"`
	TermsUsed          []string    `json:"terms_used,omitempty"`
	TestFiles          []string    `json:"test_files,omitempty"`
}

// CodeRecord is one file from the code listing. DocumentedIn and ImportedBy
// are derived reverse edges and are never authored.
type CodeRecord struct {
	Path         string   `json:"path"`
	Kind         CodeKind `json:"kind"`
	Exists       bool     `json:"exists"`
	DocumentedIn []string `json:"documented_in,omitempty"`
	Imports      []string `json:"imports,omitempty"`
	ImportedBy   []string `json:"imported_by,omitempty"`
	Exports      []string `json:"exports,omitempty"`
}

// InterfaceEdge is a directed relationship: From uses To.
type InterfaceEdge struct {
	ID               string   `json:"id"`
	File             string   `json:"file"`
	From             string   `json:"from"`
	To               string   `json:"to"`
	Type             string   `json:"type,omitempty"`
	PairToken        string   `json:"pair_token,omitempty"`
	SharedTypeGroups []string `json:"shared_type_groups,omitempty"`
}

// SharedTypeGroup is a shared-type document keyed by its canonical name.
type SharedTypeGroup struct {
	ID         string   `json:"id"`
	File       string   `json:"file"`
	Status     string   `json:"status,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
}

// TermUse is one resolved occurrence of a term.
type TermUse struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// TermRecord is a term definition together with its resolved references.
type TermRecord struct {
	Name         string    `json:"name"`
	Scope        TermScope `json:"scope"`
	File         string    `json:"file"`
	Line         int       `json:"line"`
	Type         string    `json:"type,omitempty"`
	Aliases      []string  `json:"aliases,omitempty"`
	Related      []string  `json:"related,omitempty"`
	NotToConfuse []string  `json:"not_to_confuse,omitempty"`
	Parent       string    `json:"parent,omitempty"`
	Definition   string    `json:"definition,omitempty"`
	References   []TermUse `json:"references,omitempty"`
}

// Orphan is a source or config file reachable from neither the
// documentation graph nor the import graph.
type Orphan struct {
	Path       string   `json:"path"`
	Class      CodeKind `json:"class"`
	Referenced bool     `json:"referenced"`
}
