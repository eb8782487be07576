package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/starford/archgraph/internal/checksum"
)

const tempPrefix = ".archgraph-tmp-"

var vcsDirs = map[string]struct{}{
	".git": {},
	".hg":  {},
	".svn": {},
}

var buildDirs = map[string]struct{}{
	"node_modules":  {},
	"vendor":        {},
	"dist":          {},
	"build":         {},
	"target":        {},
	"__pycache__":   {},
	".venv":         {},
	"venv":          {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the corpus root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute corpus root.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

func (f *FS) rel(abs string) string {
	r, err := filepath.Rel(f.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(r)
}

// ListDocs walks dir and returns metadata for every .md file.
func (f *FS) ListDocs(dir string) ([]DocMeta, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(base); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var out []DocMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, DocMeta{
			Path:      f.rel(p),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Walk lists every regular file under the root, skipping VCS metadata,
// dependency and build directories (unless opts.IncludeBuildDirs), ignored
// paths and excluded patterns. Symlinks are not followed.
func (f *FS) Walk(opts WalkOptions) ([]string, error) {
	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		if compiled, err := ignore.CompileIgnoreFile(filepath.Join(f.root, ".gitignore")); err == nil {
			gi = compiled
		}
	}

	var out []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == f.root {
			return nil
		}
		rel := f.rel(p)
		name := d.Name()

		if d.IsDir() {
			if SkipDirName(name, opts) {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if excluded(rel, opts.Exclude) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: walk: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// SkipDirName reports whether Walk prunes directories with this base name.
func SkipDirName(name string, opts WalkOptions) bool {
	if _, skip := vcsDirs[name]; skip {
		return true
	}
	_, skip := buildDirs[name]
	return skip && !opts.IncludeBuildDirs
}

// Excluded reports whether rel matches one of the Exclude patterns.
func (o WalkOptions) Excluded(rel string) bool {
	return excluded(rel, o.Exclude)
}

// IsTemp reports whether rel is a temporary file left by Write.
func IsTemp(rel string) bool {
	return strings.HasPrefix(filepath.Base(rel), tempPrefix)
}

func excluded(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// Read returns the raw bytes of a corpus file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename. A failed write
// leaves any previous file at path untouched.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
