package sync

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates the given files under root, making parent directories
// as needed. Values are file contents keyed by slash-separated path.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func scanTree(t *testing.T, root string, opts Options) (map[string]*Entry, []ScanWarning) {
	t.Helper()
	scanner, err := NewScanner(root, opts)
	require.NoError(t, err)
	entries, warnings, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	return entries, warnings
}

func entryPaths(entries map[string]*Entry) []string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	return paths
}

func TestScanBasicTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":     "<html></html>",
		"css/style.css":  "body {}",
		"js/app.js":      "console.log(1)",
		"images/img.png": "png",
	})

	entries, warnings := scanTree(t, root, Options{})
	assert.Empty(t, warnings)
	assert.ElementsMatch(t, []string{
		"index.html", "css", "css/style.css", "js", "js/app.js", "images", "images/img.png",
	}, entryPaths(entries))

	want := sha1.Sum([]byte("<html></html>"))
	assert.Equal(t, hex.EncodeToString(want[:]), entries["index.html"].SHA1)
	assert.False(t, entries["index.html"].IsDir)
	assert.True(t, entries["css"].IsDir)
	assert.Empty(t, entries["css"].SHA1)
}

func TestScanSkipsHiddenByDefault(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":        "x",
		".hidden.html":      "x",
		".secret/page.html": "x",
	})

	entries, _ := scanTree(t, root, Options{})
	assert.ElementsMatch(t, []string{"index.html"}, entryPaths(entries))

	entries, _ = scanTree(t, root, Options{SyncHidden: true})
	assert.ElementsMatch(t, []string{
		"index.html", ".hidden.html", ".secret", ".secret/page.html",
	}, entryPaths(entries))
}

func TestScanSkipsVCSEvenWithSyncHidden(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":       "x",
		".git/config":      "x",
		".hg/hgrc":         "x",
		".svn/entries.txt": "x",
		".bzr/branch.txt":  "x",
	})

	entries, _ := scanTree(t, root, Options{SyncHidden: true})
	assert.ElementsMatch(t, []string{"index.html"}, entryPaths(entries))

	entries, _ = scanTree(t, root, Options{SyncHidden: true, SyncVCS: true, SyncDisallowed: true})
	assert.Contains(t, entries, ".git/config")
	assert.Contains(t, entries, ".hg/hgrc")
}

func TestScanSkipsDisallowedExtensions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html": "x",
		"app.exe":    "x",
		"noext":      "x",
	})

	entries, _ := scanTree(t, root, Options{})
	assert.ElementsMatch(t, []string{"index.html"}, entryPaths(entries))

	entries, _ = scanTree(t, root, Options{SyncDisallowed: true})
	assert.ElementsMatch(t, []string{"index.html", "app.exe", "noext"}, entryPaths(entries))
}

func TestScanAllowedExtensionsFilter(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":    "x",
		"page.HTML":     "x",
		"css/style.css": "x",
		"notes.md":      "x",
	})

	entries, _ := scanTree(t, root, Options{AllowedExtensions: []string{".html", ".css"}})
	assert.ElementsMatch(t, []string{
		"index.html", "page.HTML", "css", "css/style.css",
	}, entryPaths(entries))
}

func TestScanHonorsIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":              "x",
		"drafts/a.html":           "x",
		"blog/post.html":          "x",
		"blog/draft.md":           "x",
		IgnoreFileName:           "drafts/\n*.md\n",
		"blog/" + IgnoreFileName: "!draft.md\n",
	})

	entries, _ := scanTree(t, root, Options{})
	assert.ElementsMatch(t, []string{
		"index.html", "blog", "blog/post.html", "blog/draft.md",
	}, entryPaths(entries))
}

func TestScanExcludedDirChildrenNeverReincluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":                "x",
		"drafts/keep.html":          "x",
		IgnoreFileName:              "drafts/\n",
		"drafts/" + IgnoreFileName: "!keep.html\n",
	})

	// the excluded directory is never descended into, so its own ignore
	// file cannot resurrect its children
	entries, _ := scanTree(t, root, Options{})
	assert.ElementsMatch(t, []string{"index.html"}, entryPaths(entries))
}

func TestScanNeverSyncsControlFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":             "x",
		LockFileName:            "",
		IgnoreFileName:          "",
		"sub/" + IgnoreFileName: "",
		"sub/page.html":         "x",
	})

	entries, _ := scanTree(t, root, Options{SyncHidden: true, SyncDisallowed: true})
	assert.ElementsMatch(t, []string{"index.html", "sub", "sub/page.html"}, entryPaths(entries))
}

func TestScanWarnsOnSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.html": "x"})
	require.NoError(t, os.Symlink(filepath.Join(root, "index.html"), filepath.Join(root, "link.html")))

	entries, warnings := scanTree(t, root, Options{})
	assert.ElementsMatch(t, []string{"index.html"}, entryPaths(entries))
	require.Len(t, warnings, 1)
	assert.Equal(t, "link.html", warnings[0].Path)
}

func TestScanMissingRootFails(t *testing.T) {
	scanner, err := NewScanner(filepath.Join(t.TempDir(), "nope"), Options{})
	require.NoError(t, err)
	_, _, err = scanner.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanFingerprintCache(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.html": "first"})

	scanner, err := NewScanner(root, Options{})
	require.NoError(t, err)

	entries, _, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	first := entries["index.html"].SHA1

	entries, _, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, entries["index.html"].SHA1)

	// rewrite with different content and size; the cache entry is stale
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("second pass"), 0o644))
	entries, _, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	want := sha1.Sum([]byte("second pass"))
	assert.Equal(t, hex.EncodeToString(want[:]), entries["index.html"].SHA1)
}
