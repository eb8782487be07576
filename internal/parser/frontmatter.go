package parser

import (
	"regexp"
	"strings"

	"github.com/starford/archgraph/internal/models"
)

var fmKeyRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*:\s*(.*)$`)

// Frontmatter holds the scalar and array fields of a document header.
// It is produced by a line scanner, not a YAML parser: nested structures
// are skipped.
type Frontmatter struct {
	Present bool
	scalars map[string]string
	arrays  map[string][]string
	keys    []string
}

func newFrontmatter() Frontmatter {
	return Frontmatter{
		scalars: make(map[string]string),
		arrays:  make(map[string][]string),
	}
}

// Has reports whether key appeared in the header, as a scalar or an array.
func (f Frontmatter) Has(key string) bool {
	if _, ok := f.scalars[key]; ok {
		return true
	}
	_, ok := f.arrays[key]
	return ok
}

// Scalar returns the scalar value of key, or "" when absent.
func (f Frontmatter) Scalar(key string) string {
	return f.scalars[key]
}

// IsArray reports whether key was written as an array.
func (f Frontmatter) IsArray(key string) bool {
	_, ok := f.arrays[key]
	return ok
}

// List returns the array value of key. A scalar value is returned as a
// one-element list.
func (f Frontmatter) List(key string) []string {
	if v, ok := f.arrays[key]; ok {
		return v
	}
	if v, ok := f.scalars[key]; ok && v != "" {
		return []string{v}
	}
	return nil
}

// Keys returns the field names in document order.
func (f Frontmatter) Keys() []string {
	return f.keys
}

func (f *Frontmatter) addKey(k string) {
	if !f.Has(k) {
		f.keys = append(f.keys, k)
	}
}

// scanFrontmatter reads the header block delimited by "---" lines. It
// returns the index of the first body line. An unterminated header is
// reported and the whole file is treated as body.
func scanFrontmatter(lines []string) (Frontmatter, int, []models.Diagnostic) {
	fm := newFrontmatter()
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm, 0, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if t == "---" || t == "..." {
			end = i
			break
		}
	}
	if end < 0 {
		return fm, 0, []models.Diagnostic{{
			Line:    1,
			Code:    "unterminated_frontmatter",
			Message: "frontmatter opened with --- but never closed",
		}}
	}

	fm.Present = true
	var diags []models.Diagnostic
	array := ""

	for i := 1; i < end; i++ {
		raw := lines[i]
		t := strings.TrimSpace(raw)

		if t == "-" || strings.HasPrefix(t, "- ") {
			if array == "" {
				diags = append(diags, models.Diagnostic{
					Line:    i + 1,
					Code:    "orphan_list_item",
					Message: "list item without a preceding array key",
				})
				continue
			}
			v := strings.TrimSpace(strings.TrimPrefix(t, "-"))
			if v != "" {
				fm.arrays[array] = append(fm.arrays[array], unquote(v))
			}
			continue
		}

		// Any other line closes an open array.
		array = ""

		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if raw != strings.TrimLeft(raw, " \t") {
			// Nested mapping content is outside the recognized subset.
			continue
		}
		m := fmKeyRe.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		key, val := m[1], strings.TrimSpace(m[2])
		fm.addKey(key)

		switch {
		case val == "":
			fm.arrays[key] = []string{}
			array = key
		case strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]"):
			fm.arrays[key] = splitInline(val[1 : len(val)-1])
		default:
			if q := val[0]; (q == '"' || q == '\'') && (len(val) < 2 || val[len(val)-1] != q) {
				diags = append(diags, models.Diagnostic{
					Line:    i + 1,
					Code:    "unbalanced_quote",
					Message: "value of " + key + " opens a quote that is never closed",
				})
				fm.scalars[key] = strings.TrimSpace(val[1:])
				continue
			}
			fm.scalars[key] = unquote(val)
		}
	}

	return fm, end + 1, diags
}

func splitInline(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = unquote(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
