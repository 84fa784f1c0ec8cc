package rowan

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeAsset replaces a file under root atomically, so the watcher sees one
// complete file instead of a truncate-then-write pair.
func writeAsset(t *testing.T, root, name, content string) {
	t.Helper()
	tmp := filepath.Join(root, name+".tmp")
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(root, name)); err != nil {
		t.Fatal(err)
	}
}

func TestWatchAssetsReloadsChangedResource(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cfg.json"), []byte(`{"v": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(LoaderConfig{Fetcher: DirFetcher{Root: root}, SettleDelay: -1})
	if err := l.Load(Resource{Name: "cfg", Kind: KindJSON, Src: "cfg.json"}); err != nil {
		t.Fatalf("load: %v", err)
	}

	w, err := WatchAssets(l, root)
	if err != nil {
		t.Fatalf("WatchAssets: %v", err)
	}
	defer w.Close()

	writeAsset(t, root, "cfg.json", `{"v": 2}`)

	select {
	case name := <-w.Events:
		if name != "cfg" {
			t.Errorf("reloaded %q, want %q", name, "cfg")
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the reload event")
	}

	var cfg struct {
		V int `json:"v"`
	}
	if err := l.DecodeJSON("cfg", &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.V != 2 {
		t.Errorf("after watch reload v = %d, want 2", cfg.V)
	}

	// Files no resource came from are ignored.
	writeAsset(t, root, "stranger.json", `{}`)
	select {
	case name := <-w.Events:
		t.Errorf("unexpected reload of %q", name)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherReportsReloadErrors(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cfg.json"), []byte(`{"v": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(LoaderConfig{Fetcher: DirFetcher{Root: root}, SettleDelay: -1})
	if err := l.Load(Resource{Name: "cfg", Kind: KindJSON, Src: "cfg.json"}); err != nil {
		t.Fatalf("load: %v", err)
	}

	w, err := WatchAssets(l, root)
	if err != nil {
		t.Fatalf("WatchAssets: %v", err)
	}
	defer w.Close()

	writeAsset(t, root, "cfg.json", `{broken`)

	select {
	case err := <-w.Errors:
		assertIs(t, err, ErrParse)
	case name := <-w.Events:
		t.Fatalf("reload of invalid json reported success for %q", name)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the reload error")
	}
}

func TestWatcherClose(t *testing.T) {
	l := NewLoader(LoaderConfig{})
	w, err := WatchAssets(l, t.TempDir())
	if err != nil {
		t.Fatalf("WatchAssets: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case _, ok := <-w.Events:
		if ok {
			t.Error("event delivered after close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed")
	}
	select {
	case _, ok := <-w.Errors:
		if ok {
			t.Error("error delivered after close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("errors channel not closed")
	}
}

func TestWatchAssetsMissingDir(t *testing.T) {
	l := NewLoader(LoaderConfig{})
	root := t.TempDir()
	if _, err := WatchAssets(l, root, filepath.Join(root, "missing")); err == nil {
		t.Error("WatchAssets succeeded on a missing directory")
	}
}
