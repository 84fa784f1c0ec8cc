package rowan

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher retrieves raw resource bytes for the [Loader]. Implementations
// must be safe for concurrent use; a batch preload runs every fetch at
// once.
type Fetcher interface {
	Fetch(path string) ([]byte, error)
}

// DirFetcher reads resources from a directory on disk.
type DirFetcher struct {
	Root string
}

func (d DirFetcher) Fetch(path string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("rowan: fetch %q: %w", path, err)
	}
	return b, nil
}

// FSFetcher reads resources from any fs.FS, typically an embed.FS holding
// the game's assets.
type FSFetcher struct {
	FS fs.FS
}

func (f FSFetcher) Fetch(path string) ([]byte, error) {
	b, err := fs.ReadFile(f.FS, path)
	if err != nil {
		return nil, fmt.Errorf("rowan: fetch %q: %w", path, err)
	}
	return b, nil
}

// HTTPFetcher issues GET requests relative to a base URL. Credentials,
// when set, go out as basic auth on every request.
type HTTPFetcher struct {
	BaseURL  string
	Username string
	Password string

	// Client defaults to one with a 30 second timeout.
	Client *http.Client
}

func (h HTTPFetcher) Fetch(path string) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	url := strings.TrimSuffix(h.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rowan: fetch %q: %w", path, err)
	}
	if h.Username != "" || h.Password != "" {
		req.SetBasicAuth(h.Username, h.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rowan: fetch %q: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rowan: fetch %q: %s", path, resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rowan: fetch %q: %w", path, err)
	}
	return b, nil
}
