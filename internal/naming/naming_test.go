package naming

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/report"
)

func sharedDoc(t *testing.T, stem string, frontmatter string) *parser.Document {
	t.Helper()
	pc, err := parser.NewContext(parser.Options{})
	require.NoError(t, err)
	return pc.Parse("docs/shared-types/"+stem+".md", models.DocSharedType, []byte("---\n"+frontmatter+"---\n"))
}

func goodFrontmatter(tokens ...string) string {
	var b strings.Builder
	b.WriteString("type: shared\nstatus: active\ninterfaces:\n")
	for _, tok := range tokens {
		b.WriteString("  - " + tok + "\n")
	}
	return b.String()
}

func kinds(issues []report.Issue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, string(is.Kind))
	}
	return out
}

func TestCheck_Valid(t *testing.T) {
	v := New(4, 7)
	issues := v.Check(sharedDoc(t, "01--02_02--03", goodFrontmatter("01--02", "02--03")))
	assert.Empty(t, issues)
}

func TestCheck_UnsortedSuggestsCanonicalName(t *testing.T) {
	v := New(4, 7)
	issues := v.Check(sharedDoc(t, "02--03_01--02", goodFrontmatter("01--02", "02--03")))
	require.Len(t, issues, 1)
	assert.Equal(t, report.KindSorting, issues[0].Kind)
	assert.Equal(t, "01--02_02--03", issues[0].Suggestion)
}

func TestCheck_FormatAndDuplicate(t *testing.T) {
	v := New(4, 7)
	issues := v.Check(sharedDoc(t, "01--02_1--3_01--02", goodFrontmatter("01--02")))
	assert.ElementsMatch(t, []string{"format", "duplicate"}, kinds(issues))
}

func TestCheck_ReferenceMismatch(t *testing.T) {
	v := New(4, 7)
	issues := v.Check(sharedDoc(t, "01--02_02--03", goodFrontmatter("01--02", "03--04")))
	require.Len(t, issues, 1)
	assert.Equal(t, report.KindReference, issues[0].Kind)
	assert.Contains(t, issues[0].Message, "missing from interfaces: 02--03")
	assert.Contains(t, issues[0].Message, "not in file name: 03--04")
}

func TestCheck_FrontmatterRules(t *testing.T) {
	v := New(4, 7)
	fm := "type: \"type\"\ninterfaces:\n  - 02--03\n  - 01--02\n"
	issues := v.Check(sharedDoc(t, "01--02_02--03", fm))
	assert.Equal(t, []string{"frontmatter", "frontmatter", "frontmatter"}, kinds(issues))

	issues = v.Check(sharedDoc(t, "01--02", "type: shared\nstatus: x\n"))
	assert.ElementsMatch(t, []string{"frontmatter", "reference"}, kinds(issues))
}

func TestCheck_Complexity(t *testing.T) {
	v := New(3, 4)
	tokens := []string{"01--02", "02--03", "03--04"}
	issues := v.Check(sharedDoc(t, strings.Join(tokens, "_"), goodFrontmatter(tokens...)))
	require.Len(t, issues, 1)
	assert.Equal(t, report.KindComplexity, issues[0].Kind)
	assert.Equal(t, report.SeverityWarning, issues[0].Severity)

	tokens = append(tokens, "04--05")
	issues = v.Check(sharedDoc(t, strings.Join(tokens, "_"), goodFrontmatter(tokens...)))
	require.Len(t, issues, 1)
	assert.Equal(t, report.SeverityError, issues[0].Severity)
}

// A file name has no sorting error exactly when its tokens are ascending.
func TestCheck_SortingIffUnsorted(t *testing.T) {
	v := New(10, 20)
	pool := []string{"01--02", "01--03", "02--03", "03--01", "10--11"}
	for i := range pool {
		for j := range pool {
			for k := range pool {
				if i == j || j == k || i == k {
					continue
				}
				tokens := []string{pool[i], pool[j], pool[k]}
				stem := strings.Join(tokens, "_")
				issues := v.Check(sharedDoc(t, stem, goodFrontmatter(Canonical(tokens)...)))
				gotSorting := false
				for _, is := range issues {
					if is.Kind == report.KindSorting {
						gotSorting = true
					}
				}
				assert.Equal(t, !sort.StringsAreSorted(tokens), gotSorting, fmt.Sprintf("stem %s", stem))
			}
		}
	}
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "01--02_02--03", CanonicalName([]string{"02--03", "01--02", "02--03"}))
	assert.True(t, ValidToken("07--12"))
	assert.False(t, ValidToken("7--12"))
	assert.False(t, ValidToken(""))
}
