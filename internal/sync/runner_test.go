package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelhosted/neosync/internal/config"
	"github.com/pixelhosted/neosync/internal/neocities"
)

// fakeSite is an in-memory Neocities API good enough for one site.
type fakeSite struct {
	mu      stdsync.Mutex
	listing []map[string]any
	uploads []string
	deletes []string
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"result": "success", "files": f.listing})
	})
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		for name := range r.MultipartForm.File {
			f.uploads = append(f.uploads, name)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": "success"})
	})
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deletes = append(f.deletes, r.PostForm["filenames[]"]...)
		json.NewEncoder(w).Encode(map[string]any{"result": "success"})
	})
	return mux
}

func remoteListingFile(p, sha string) map[string]any {
	return map[string]any{"path": p, "is_directory": false, "size": 1, "sha1_hash": sha}
}

func TestRunnerEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html": "fresh content",
		"style.css":  "body {}",
	})

	site := &fakeSite{listing: []map[string]any{
		remoteListingFile("index.html", "0000000000000000000000000000000000000000"),
		remoteListingFile("old.js", "1111111111111111111111111111111111111111"),
	}}
	server := httptest.NewServer(site.handler())
	defer server.Close()

	cfg := &config.SiteConfig{
		Name:            "mysite",
		APIKey:          "test-key",
		RootDir:         root,
		RemoveEmptyDirs: true,
	}
	client := neocities.New(cfg.APIKey, neocities.WithBaseURL(server.URL))
	runner, err := NewRunner(cfg, client, RunOptions{})
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Ok())
	assert.Len(t, report.Succeeded, 3)

	assert.ElementsMatch(t, []string{"index.html", "style.css"}, site.uploads)
	assert.Equal(t, []string{"old.js"}, site.deletes)
}

func TestRunnerDryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.html": "x"})

	site := &fakeSite{listing: []map[string]any{
		remoteListingFile("old.js", "1111111111111111111111111111111111111111"),
	}}
	server := httptest.NewServer(site.handler())
	defer server.Close()

	cfg := &config.SiteConfig{Name: "mysite", APIKey: "k", RootDir: root, RemoveEmptyDirs: true}
	client := neocities.New(cfg.APIKey, neocities.WithBaseURL(server.URL))
	runner, err := NewRunner(cfg, client, RunOptions{DryRun: true})
	require.NoError(t, err)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Skipped, 2)
	assert.Empty(t, site.uploads)
	assert.Empty(t, site.deletes)
}

func TestRunnerMissingRoot(t *testing.T) {
	cfg := &config.SiteConfig{
		Name:    "mysite",
		APIKey:  "k",
		RootDir: filepath.Join(t.TempDir(), "missing"),
	}
	runner, err := NewRunner(cfg, neocities.New(cfg.APIKey), RunOptions{})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.ErrorContains(t, err, "not a directory")
}

func TestRunnerRefusesLockedRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.html": "x"})

	held := flock.New(filepath.Join(root, LockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	cfg := &config.SiteConfig{Name: "mysite", APIKey: "k", RootDir: root}
	runner, err := NewRunner(cfg, neocities.New(cfg.APIKey), RunOptions{})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrSiteLocked)
}

func TestRunnerReleasesLockAndKeepsLockFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.html": "x"})

	site := &fakeSite{}
	server := httptest.NewServer(site.handler())
	defer server.Close()

	cfg := &config.SiteConfig{Name: "mysite", APIKey: "k", RootDir: root, RemoveEmptyDirs: true}
	client := neocities.New(cfg.APIKey, neocities.WithBaseURL(server.URL))
	runner, err := NewRunner(cfg, client, RunOptions{})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	// the file is left in place, but the flock itself is released
	lockPath := filepath.Join(root, LockFileName)
	_, err = os.Stat(lockPath)
	require.NoError(t, err)

	next := flock.New(lockPath)
	locked, err := next.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	defer next.Unlock()
}

func TestRemoteEntries(t *testing.T) {
	entries := RemoteEntries([]*neocities.RemoteFile{
		{Path: "/index.html", Size: 10, SHA1Hash: "abc"},
		{Path: "blog", IsDirectory: true},
		{Path: "blog\\post.html", Size: 3, SHA1Hash: "def"},
	})

	require.Contains(t, entries, "index.html")
	assert.Equal(t, int64(10), entries["index.html"].Size)
	assert.Equal(t, "abc", entries["index.html"].SHA1)
	require.Contains(t, entries, "blog")
	assert.True(t, entries["blog"].IsDir)
	require.Contains(t, entries, "blog/post.html")
}
