package ingest

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"b.JPG", "a.png", "notes.txt", ".hidden.jpg",
		"sub/c.heic", ".cache/d.jpg", "sub/deeper/e.tiff",
	} {
		touch(t, filepath.Join(root, p))
	}

	paths, stats, err := ScanDirectory(context.Background(), root, true)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.png"),
		filepath.Join(root, "b.JPG"),
		filepath.Join(root, "sub/c.heic"),
		filepath.Join(root, "sub/deeper/e.tiff"),
	}
	if !slices.Equal(paths, want) {
		t.Errorf("paths = %v\nwant  %v", paths, want)
	}
	if stats.Matched != 4 {
		t.Errorf("stats = %+v", stats)
	}

	all, _, err := ScanDirectory(context.Background(), root, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Errorf("without hidden filter got %d paths: %v", len(all), all)
	}

	if _, _, err := ScanDirectory(context.Background(), filepath.Join(root, "missing"), true); err == nil {
		t.Error("missing root should fail")
	}
	if _, _, err := ScanDirectory(context.Background(), " ", true); err == nil {
		t.Error("blank root should fail")
	}
}

func receive(t *testing.T, ch <-chan string, timeout time.Duration) (string, bool) {
	t.Helper()
	select {
	case p, ok := <-ch:
		return p, ok
	case <-time.After(timeout):
		return "", false
	}
}

func TestWatcherInitialScanAndEvents(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.jpg")
	touch(t, existing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	if p, ok := receive(t, events, 2*time.Second); !ok || p != existing {
		t.Fatalf("initial scan: got %q %v", p, ok)
	}

	touch(t, filepath.Join(root, "ignored.txt"))
	fresh := filepath.Join(root, "fresh.png")
	touch(t, fresh)
	if p, ok := receive(t, events, 2*time.Second); !ok || p != fresh {
		t.Fatalf("new photo: got %q %v", p, ok)
	}

	cancel()
	for {
		if _, ok := receive(t, events, 2*time.Second); !ok {
			break
		}
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Error("expected error without roots")
	}
}
