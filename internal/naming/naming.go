// Package naming validates shared-type documents: the pair tokens encoded
// in the file name, their agreement with the frontmatter and the group's
// complexity.
package naming

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/report"
)

// Separator joins pair tokens in a shared-type name.
const Separator = "_"

// Default complexity thresholds.
const (
	DefaultWarnThreshold = 4
	DefaultMaxThreshold  = 7
)

var tokenRe = regexp.MustCompile(`^\d{2}--\d{2}$`)

// ValidToken reports whether s is a two-digit zero-padded pair token.
func ValidToken(s string) bool {
	return validation.Validate(s, validation.Required, validation.Match(tokenRe)) == nil
}

// CanonicalName returns the sorted, de-duplicated tokens joined by
// Separator.
func CanonicalName(tokens []string) string {
	return strings.Join(Canonical(tokens), Separator)
}

// Canonical returns the sorted, de-duplicated token list.
func Canonical(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseName splits a shared-type file stem into its tokens.
func ParseName(stem string) []string {
	return strings.Split(stem, Separator)
}

// Validator checks shared-type documents.
type Validator struct {
	WarnThreshold int
	MaxThreshold  int
}

// New creates a validator. Non-positive thresholds fall back to defaults.
func New(warn, max int) *Validator {
	if warn <= 0 {
		warn = DefaultWarnThreshold
	}
	if max <= 0 {
		max = DefaultMaxThreshold
	}
	return &Validator{WarnThreshold: warn, MaxThreshold: max}
}

// CheckAll validates every shared-type document.
func (v *Validator) CheckAll(docs []*parser.Document) []report.Issue {
	var out []report.Issue
	for _, d := range docs {
		out = append(out, v.Check(d)...)
	}
	return out
}

// Check validates one shared-type document.
func (v *Validator) Check(doc *parser.Document) []report.Issue {
	st := doc.SharedType
	if st == nil {
		return nil
	}
	file := doc.Path
	var out []report.Issue

	valid := make([]string, 0, len(st.Tokens))
	for _, tok := range st.Tokens {
		if !ValidToken(tok) {
			is := report.Error(report.KindFormat, file,
				fmt.Sprintf("token %q in file name is not a two-digit pair like 01--02", tok))
			is.Subject = tok
			out = append(out, is)
			continue
		}
		valid = append(valid, tok)
	}

	counts := make(map[string]int, len(valid))
	for _, tok := range valid {
		counts[tok]++
	}
	for _, tok := range Canonical(valid) {
		if counts[tok] > 1 {
			is := report.Error(report.KindDuplicate, file,
				fmt.Sprintf("token %q appears %d times in file name", tok, counts[tok]))
			is.Subject = tok
			out = append(out, is)
		}
	}

	if !sort.StringsAreSorted(valid) {
		is := report.Error(report.KindSorting, file,
			fmt.Sprintf("tokens in %q are not in ascending order", st.Stem))
		is.Suggestion = CanonicalName(valid)
		out = append(out, is)
	}

	out = append(out, v.checkFrontmatter(file, st, valid)...)
	out = append(out, v.checkComplexity(file, Canonical(valid))...)
	return out
}

func (v *Validator) checkFrontmatter(file string, st *parser.SharedTypeFields, tokens []string) []report.Issue {
	var out []report.Issue

	if st.Type != "shared" {
		out = append(out, report.Error(report.KindFrontmatter, file,
			fmt.Sprintf("type must be \"shared\", got %q", st.Type)))
	}
	if strings.TrimSpace(st.Status) == "" {
		out = append(out, report.Error(report.KindFrontmatter, file, "status is missing"))
	}
	if !st.HasInterfaces {
		out = append(out, report.Error(report.KindFrontmatter, file, "interfaces array is missing"))
	} else if !sort.StringsAreSorted(st.Interfaces) {
		is := report.Error(report.KindFrontmatter, file, "interfaces array is not sorted")
		is.Suggestion = "[" + strings.Join(Canonical(st.Interfaces), ", ") + "]"
		out = append(out, is)
	}
	if st.HasInterfaces && len(Canonical(st.Interfaces)) != len(st.Interfaces) {
		out = append(out, report.Error(report.KindFrontmatter, file, "interfaces array contains duplicates"))
	}

	missing, extra := diff(tokens, st.Interfaces)
	if len(missing) > 0 || len(extra) > 0 {
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "missing from interfaces: "+strings.Join(missing, ", "))
		}
		if len(extra) > 0 {
			parts = append(parts, "not in file name: "+strings.Join(extra, ", "))
		}
		is := report.Error(report.KindReference, file,
			"frontmatter interfaces do not match file name tokens ("+strings.Join(parts, "; ")+")")
		is.Suggestion = "[" + strings.Join(Canonical(tokens), ", ") + "]"
		out = append(out, is)
	}
	return out
}

func (v *Validator) checkComplexity(file string, tokens []string) []report.Issue {
	n := len(tokens)
	switch {
	case n >= v.MaxThreshold:
		return []report.Issue{report.Error(report.KindComplexity, file,
			fmt.Sprintf("shared type spans %d interface pairs (max %d); split it or promote it to a project-global type",
				n, v.MaxThreshold))}
	case n >= v.WarnThreshold:
		return []report.Issue{report.Warning(report.KindComplexity, file,
			fmt.Sprintf("shared type spans %d interface pairs; consider promoting it to a project-global type", n))}
	}
	return nil
}

// diff returns the elements of want absent from got and of got absent
// from want, both sorted.
func diff(want, got []string) (missing, extra []string) {
	ws := toSet(want)
	gs := toSet(got)
	for s := range ws {
		if _, ok := gs[s]; !ok {
			missing = append(missing, s)
		}
	}
	for s := range gs {
		if _, ok := ws[s]; !ok {
			extra = append(extra, s)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func toSet(in []string) map[string]struct{} {
	m := make(map[string]struct{}, len(in))
	for _, s := range in {
		m[s] = struct{}{}
	}
	return m
}
