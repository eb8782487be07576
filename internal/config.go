package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/archgraph/internal/engine"
	"github.com/starford/archgraph/internal/naming"
	"github.com/starford/archgraph/internal/parser"
	"github.com/starford/archgraph/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Corpus  CorpusConfig      `yaml:"corpus"`
	Naming  NamingConfig      `yaml:"naming"`
	Index   IndexConfig       `yaml:"index"`
	Orphans OrphansConfig     `yaml:"orphans"`
	Imports ImportsConfig     `yaml:"imports"`
	Parser  ParserConfig      `yaml:"parser"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Corpus, &c.Naming, &c.Index, &c.Orphans, &c.Parser, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// Debounce is the quiet period before the watcher triggers a rebuild.
	Debounce time.Duration `yaml:"debounce"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// CorpusConfig locates the corpus and its document directories. The
// directories are relative to Root.
type CorpusConfig struct {
	Root           string   `yaml:"root"`
	FeaturesDir    string   `yaml:"features_dir"`
	InterfacesDir  string   `yaml:"interfaces_dir"`
	SharedTypesDir string   `yaml:"shared_types_dir"`
	TermsDir       string   `yaml:"terms_dir"`
	GlobalTerms    []string `yaml:"global_terms"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.FeaturesDir, validation.Required, validation.By(relativePath)),
		validation.Field(&c.InterfacesDir, validation.By(relativePath)),
		validation.Field(&c.SharedTypesDir, validation.By(relativePath)),
		validation.Field(&c.TermsDir, validation.By(relativePath)),
	)
}

// DocumentDirs returns the configured document directories.
func (c *CorpusConfig) DocumentDirs() []string {
	var dirs []string
	for _, d := range []string{c.FeaturesDir, c.InterfacesDir, c.SharedTypesDir, c.TermsDir} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func relativePath(v any) error {
	s, _ := v.(string)
	if s != "" && filepath.IsAbs(s) {
		return fmt.Errorf("must be relative to the corpus root")
	}
	return nil
}

// NamingConfig holds the shared-type complexity thresholds.
type NamingConfig struct {
	WarnThreshold int `yaml:"warn_threshold"`
	MaxThreshold  int `yaml:"max_threshold"`
}

// Validate validates the naming configuration.
func (c *NamingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WarnThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxThreshold, validation.Required, validation.Min(c.WarnThreshold)),
	)
}

// IndexConfig holds the output locations.
type IndexConfig struct {
	// ArtifactPath is the JSON reference index, relative to the corpus root.
	ArtifactPath string `yaml:"artifact_path"`
	// SQLitePath is the query mirror. Relative paths resolve against the
	// working directory.
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ArtifactPath, validation.Required, validation.By(relativePath)),
		validation.Field(&c.SQLitePath, validation.Required),
	)
}

// OrphansConfig controls the code listing and orphan severity.
type OrphansConfig struct {
	IncludeBuildDirs bool     `yaml:"include_build_dirs"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	Exclude          []string `yaml:"exclude"`
	// Fail reports orphans as errors.
	Fail bool `yaml:"fail"`
}

// Validate validates the orphan configuration.
func (c *OrphansConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Exclude, validation.Each(validation.Required)),
	)
}

// ImportsConfig selects the import graph sources.
type ImportsConfig struct {
	// File is an import graph JSON file relative to the corpus root.
	File string `yaml:"file"`
	// Optional tolerates a missing File.
	Optional bool `yaml:"optional"`
	// Go derives import edges from Go sources under the corpus root.
	Go bool `yaml:"go"`
}

// ParserConfig tunes the map phase.
type ParserConfig struct {
	CacheSize   int `yaml:"cache_size"`
	Lookahead   int `yaml:"lookahead"`
	Parallelism int `yaml:"parallelism"`
}

// Validate validates the parser configuration.
func (c *ParserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheSize, validation.Min(0)),
		validation.Field(&c.Lookahead, validation.Min(0), validation.Max(50)),
		validation.Field(&c.Parallelism, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration for the HTTP surface.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EngineOptions converts the configuration into the snapshot a run uses.
func (c *Config) EngineOptions() engine.Options {
	exclude := append([]string{c.Index.ArtifactPath}, c.Orphans.Exclude...)
	if c.Imports.File != "" {
		exclude = append(exclude, c.Imports.File)
	}
	return engine.Options{
		FeaturesDir:         c.Corpus.FeaturesDir,
		InterfacesDir:       c.Corpus.InterfacesDir,
		SharedTypesDir:      c.Corpus.SharedTypesDir,
		TermsDir:            c.Corpus.TermsDir,
		GlobalTermScope:     c.Corpus.GlobalTerms,
		NamingWarnThreshold: c.Naming.WarnThreshold,
		NamingMaxThreshold:  c.Naming.MaxThreshold,
		Walk: storage.WalkOptions{
			IncludeBuildDirs: c.Orphans.IncludeBuildDirs,
			RespectGitignore: c.Orphans.RespectGitignore,
			Exclude:          exclude,
		},
		FailOnOrphans:  c.Orphans.Fail,
		IndexPath:      c.Index.ArtifactPath,
		Parallelism:    c.Parser.Parallelism,
		ParseCacheSize: c.Parser.CacheSize,
		Lookahead:      c.Parser.Lookahead,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:     8080,
				Debounce: 300 * time.Millisecond,
			},
		},
		Corpus: CorpusConfig{
			Root:           ".",
			FeaturesDir:    "docs/features",
			InterfacesDir:  "docs/interfaces",
			SharedTypesDir: "docs/shared-types",
			TermsDir:       "docs/terms",
			GlobalTerms:    []string{"docs/terms"},
		},
		Naming: NamingConfig{
			WarnThreshold: naming.DefaultWarnThreshold,
			MaxThreshold:  naming.DefaultMaxThreshold,
		},
		Index: IndexConfig{
			ArtifactPath: ".archgraph/index.json",
			SQLitePath:   "./archgraph.db",
		},
		Orphans: OrphansConfig{
			RespectGitignore: true,
		},
		Imports: ImportsConfig{
			File:     ".archgraph/imports.json",
			Optional: true,
			Go:       true,
		},
		Parser: ParserConfig{
			CacheSize: 1024,
			Lookahead: parser.DefaultLookahead,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
