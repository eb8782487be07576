package orphans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/report"
)

func TestClassify(t *testing.T) {
	cases := map[string]models.CodeKind{
		"internal/auth/login.go":      models.CodeSource,
		"internal/auth/login_test.go": models.CodeTest,
		"web/src/app.spec.ts":         models.CodeTest,
		"tests/helpers.py":            models.CodeTest,
		"api/v1/user.pb.go":           models.CodeGenerated,
		"go.sum":                      models.CodeGenerated,
		"config/app.yaml":             models.CodeConfig,
		"Makefile":                    models.CodeConfig,
		"docs/features/auth.md":       models.CodeDoc,
		"assets/logo.png":             models.CodeOther,
		"./cmd/app/main.go":           models.CodeSource,
	}
	for p, want := range cases {
		assert.Equal(t, want, Classify(p), p)
	}
}

func TestDetect(t *testing.T) {
	listing := []string{
		"cmd/app/main.go",
		"internal/auth/login.go",
		"internal/auth/login_test.go",
		"internal/util/strings.go",
		"internal/util/unused.go",
		"config/app.yaml",
		"README.md",
	}
	code := map[string]*models.CodeRecord{
		"cmd/app/main.go":          {Path: "cmd/app/main.go", DocumentedIn: []string{"app"}},
		"internal/auth/login.go":   {Path: "internal/auth/login.go", DocumentedIn: []string{"auth"}},
		"internal/util/strings.go": {Path: "internal/util/strings.go", ImportedBy: []string{"internal/auth/login.go"}},
		"internal/util/unused.go":  {Path: "internal/util/unused.go"},
	}
	mentioned := map[string]struct{}{"config/app.yaml": {}}

	got := Detect(listing, code, mentioned)
	require.Len(t, got, 2)
	assert.Equal(t, models.Orphan{Path: "config/app.yaml", Class: models.CodeConfig, Referenced: true}, got[0])
	assert.Equal(t, models.Orphan{Path: "internal/util/unused.go", Class: models.CodeSource}, got[1])

	issues := Issues(got)
	require.Len(t, issues, 2)
	for _, is := range issues {
		assert.Equal(t, report.KindOrphan, is.Kind)
		assert.Equal(t, report.SeverityWarning, is.Severity)
	}
	assert.Contains(t, issues[0].Message, "mentioned in documentation")
}

func TestDetect_EmptyListing(t *testing.T) {
	assert.Empty(t, Detect(nil, nil, nil))
}
