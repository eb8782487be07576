package models

// DocKind identifies the corpus directory a document was read from.
type DocKind string

const (
	DocFeature    DocKind = "feature"
	DocInterface  DocKind = "interface"
	DocSharedType DocKind = "shared_type"
	DocTerms      DocKind = "terms"
)

// Diagnostic is a parse problem attached to a single document. It never
// aborts a run.
type Diagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
