package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/engine"
	"github.com/starford/archgraph/internal/storage"
)

// watcherTestEnv sets up a corpus dir, storage, engine and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *engine.Engine, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)

	eng := engine.New(engine.Options{
		FeaturesDir: "docs/features",
		IndexPath:   ".archgraph/index.json",
		Walk:        storage.WalkOptions{Exclude: []string{".archgraph/**"}},
	}, store, nil, testLogger(), nil)
	return root, eng, db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSync_WritesArtifactAndMirror(t *testing.T) {
	root, eng, db := watcherTestEnv(t)
	writeFile(t, root, "docs/features/a.md", "---\nfeature: a\nstatus: x\nentry_point: a.go\n---\n")
	writeFile(t, root, "a.go", "package a\n")

	res, err := Sync(context.Background(), db, eng, true, testLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.Report.OK() {
		t.Errorf("report not ok: %+v", res.Report.Issues)
	}
	if _, err := os.Stat(filepath.Join(root, ".archgraph", "index.json")); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	if _, err := db.Feature("a"); err != nil {
		t.Errorf("Feature(a): %v", err)
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var batches [][]string
	go Watch(ctx, root, nil, 200*time.Millisecond, testLogger(), func(_ context.Context, changed []string) {
		mu.Lock()
		batches = append(batches, changed)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.md", "b")
	writeFile(t, root, "a.md", "a2")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, "no change batch delivered")

	mu.Lock()
	defer mu.Unlock()
	got := strings.Join(batches[0], ",")
	if got != "a.md,b.md" {
		t.Errorf("first batch = %q, want %q", got, "a.md,b.md")
	}
}

func TestWatcher_SkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	skip := func(rel string, _ bool) bool { return rel == ".git" || strings.HasPrefix(rel, ".git/") }
	go Watch(ctx, root, skip, 100*time.Millisecond, testLogger(), func(_ context.Context, changed []string) {
		mu.Lock()
		seen = append(seen, changed...)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	writeFile(t, root, ".git/HEAD", "ref")
	writeFile(t, root, "doc.md", "x")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, "no change batch delivered")

	mu.Lock()
	defer mu.Unlock()
	for _, p := range seen {
		if strings.HasPrefix(p, ".git") {
			t.Errorf("skipped path delivered: %q", p)
		}
	}
}

func TestWatcher_NewDirWatchedAndRebuilt(t *testing.T) {
	root, eng, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, root, nil, 100*time.Millisecond, testLogger(), func(ctx context.Context, _ []string) {
		_, _ = Sync(ctx, db, eng, false, testLogger())
	})
	time.Sleep(100 * time.Millisecond)

	if err := os.MkdirAll(filepath.Join(root, "docs", "features"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	writeFile(t, root, "docs/features/deep.md", "---\nfeature: deep\n---\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.Feature("deep")
		return err == nil
	}, "feature in new dir not mirrored after rebuild")

	if _, err := db.Feature("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Feature(missing) err = %v", err)
	}
}
