package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/report"
)

func parse(t *testing.T, pc *parser.Context, path, body string) *parser.Document {
	t.Helper()
	return pc.Parse(path, models.DocTerms, []byte(body))
}

func newParser(t *testing.T) *parser.Context {
	t.Helper()
	pc, err := parser.NewContext(parser.Options{})
	require.NoError(t, err)
	return pc
}

func TestRegistry_IsGlobal(t *testing.T) {
	r := NewRegistry([]string{"docs/terms", "docs/**/glossary.md"})
	assert.True(t, r.IsGlobal("docs/terms/a.md"))
	assert.True(t, r.IsGlobal("docs/terms/sub/b.md"))
	assert.True(t, r.IsGlobal("docs/features/glossary.md"))
	assert.False(t, r.IsGlobal("docs/termsx/a.md"))
	assert.False(t, r.IsGlobal("docs/features/auth.md"))
}

func TestRegistry_ConflictingGlobalDefinition(t *testing.T) {
	pc := newParser(t)
	r := NewRegistry([]string{"docs/terms"})
	r.Add(parse(t, pc, "docs/terms/a.md", "## [[Foo]]\nFirst.\n"))
	r.Add(parse(t, pc, "docs/terms/b.md", "## [[Foo]]\nSecond.\n"))
	r.Add(parse(t, pc, "docs/features/x.md", "Uses [[Foo]].\n"))

	res := r.Build()
	conflicts := filter(res.Issues, report.KindConflictingDefinition)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Foo", conflicts[0].Subject)
	assert.Equal(t, "docs/terms/b.md", conflicts[0].File)

	// The first definition in path order is canonical.
	require.Contains(t, res.Terms, "Foo")
	assert.Equal(t, "docs/terms/a.md", res.Terms["Foo"].File)
}

func TestRegistry_LocalDefinitionsMayRepeatAcrossFiles(t *testing.T) {
	pc := newParser(t)
	r := NewRegistry([]string{"docs/terms"})
	r.Add(parse(t, pc, "docs/features/a.md", "## [[Session]]\nA session.\n\nSee [[Session]].\n"))
	r.Add(parse(t, pc, "docs/features/b.md", "## [[Session]]\nB session.\n\nSee [[Session]].\n"))

	res := r.Build()
	assert.Empty(t, filter(res.Issues, report.KindConflictingDefinition))
	assert.Empty(t, filter(res.Issues, report.KindUndefinedTerm))
	require.Contains(t, res.Terms, "docs/features/a.md#Session")
	require.Contains(t, res.Terms, "docs/features/b.md#Session")
	assert.Equal(t, []string{"docs/features/a.md#Session"}, res.UsedBy("docs/features/a.md"))
}

func TestRegistry_ResolutionOrder(t *testing.T) {
	pc := newParser(t)
	r := NewRegistry([]string{"docs/terms"})
	r.Add(parse(t, pc, "docs/terms/g.md", "## [[Pair Token]]\n**Aliases**: token, pair\n\nA pair.\n"))
	r.Add(parse(t, pc, "docs/features/f.md",
		"## [[Widget]]\n**Aliases**: gizmo\n\nLocal.\n\n[[token]] [[gizmo]] [[Widget]] [[Pair Token]]\n"))
	r.Add(parse(t, pc, "docs/features/other.md", "[[gizmo]]\n"))

	res := r.Build()

	k, ok := res.Resolve("token", "docs/features/f.md")
	require.True(t, ok)
	assert.Equal(t, "Pair Token", k)

	k, ok = res.Resolve("gizmo", "docs/features/f.md")
	require.True(t, ok)
	assert.Equal(t, "docs/features/f.md#Widget", k)

	// Local aliases do not leak into other files.
	_, ok = res.Resolve("gizmo", "docs/features/other.md")
	assert.False(t, ok)

	undefined := filter(res.Issues, report.KindUndefinedTerm)
	require.Len(t, undefined, 1)
	assert.Equal(t, "docs/features/other.md", undefined[0].File)
	assert.Equal(t, 1, undefined[0].Line)

	assert.Len(t, res.Terms["Pair Token"].References, 2)
}

func TestRegistry_UndefinedOncePerSite(t *testing.T) {
	pc := newParser(t)
	r := NewRegistry(nil)
	r.Add(parse(t, pc, "a.md", "[[Ghost]] and again [[Ghost]]\n[[Ghost]]\n"))

	res := r.Build()
	undefined := filter(res.Issues, report.KindUndefinedTerm)
	require.Len(t, undefined, 2)
	assert.Equal(t, 1, undefined[0].Line)
	assert.Equal(t, 2, undefined[1].Line)
}

func TestRegistry_UnusedGlobalIsWarning(t *testing.T) {
	pc := newParser(t)
	r := NewRegistry([]string{"docs/terms"})
	r.Add(parse(t, pc, "docs/terms/g.md", "## [[Lonely]]\nNobody cites me.\n"))
	r.Add(parse(t, pc, "docs/features/f.md", "## [[LocalOnly]]\nNot reported.\n"))

	res := r.Build()
	unused := filter(res.Issues, report.KindUnusedDefinition)
	require.Len(t, unused, 1)
	assert.Equal(t, "Lonely", unused[0].Subject)
	assert.Equal(t, report.SeverityWarning, unused[0].Severity)
}

func filter(issues []report.Issue, kind report.Kind) []report.Issue {
	var out []report.Issue
	for _, is := range issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}
