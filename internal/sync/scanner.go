package sync

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pixelhosted/neosync/internal/neocities"
	"github.com/pixelhosted/neosync/internal/utils"
)

const (
	// LockFileName guards a site root against concurrent runs. Never synced.
	LockFileName = ".neosync.lock"

	maxHashConcurrency   = 4
	fingerprintCacheSize = 8192
)

// control directories of common VCS tools, skipped unless sync_vcs is set
var vcsNames = mapset.NewSet(".git", ".hg", ".svn", ".bzr")

// ScanWarning is a non-fatal per-entry failure; the entry is excluded from
// the sync set and the scan continues.
type ScanWarning struct {
	Path string
	Err  error
}

type fingerprint struct {
	size    int64
	modTime time.Time
	sha1    string
}

type hashJob struct {
	entry   *Entry
	absPath string
}

type hashResult struct {
	path string
	sha1 string
	err  error
}

// Scanner walks a site root and produces the canonical set of syncable
// entries. The fingerprint cache is private to one site; scanners must not
// be shared across sites.
type Scanner struct {
	root    string
	opts    Options
	allowed mapset.Set[string] // nil means unrestricted
	cache   *lru.Cache[string, fingerprint]
}

func NewScanner(root string, opts Options) (*Scanner, error) {
	cache, err := lru.New[string, fingerprint](fingerprintCacheSize)
	if err != nil {
		return nil, err
	}

	var allowed mapset.Set[string]
	if len(opts.AllowedExtensions) > 0 {
		allowed = mapset.NewSet(opts.AllowedExtensions...)
	}

	return &Scanner{
		root:    root,
		opts:    opts,
		allowed: allowed,
		cache:   cache,
	}, nil
}

// Scan walks the root applying the hidden/VCS/extension/ignore filters and
// returns the local entry set with content fingerprints. An unreadable root
// is fatal; everything else degrades to a warning.
func (s *Scanner) Scan(ctx context.Context) (map[string]*Entry, []ScanWarning, error) {
	entries := make(map[string]*Entry)
	var warnings []ScanWarning
	var jobs []hashJob
	ignores := &IgnoreStack{}

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == s.root {
				return fmt.Errorf("scan root: %w", walkErr)
			}
			warnings = append(warnings, ScanWarning{Path: p, Err: walkErr})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if p == s.root {
			s.pushIgnoreFile(ignores, "", p, &warnings)
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return fmt.Errorf("scan rel path: %w", err)
		}
		rel = utils.NormPath(rel)
		name := d.Name()
		isDir := d.IsDir()

		ignores.PopTo(parentDir(rel))

		// never synced, regardless of flags
		if name == IgnoreFileName || name == LockFileName {
			return nil
		}

		// VCS before hidden: .git stays excluded even with sync_hidden
		if !s.opts.SyncVCS && vcsNames.Contains(name) {
			return skipEntry(isDir)
		}
		if !s.opts.SyncHidden && strings.HasPrefix(name, ".") {
			return skipEntry(isDir)
		}
		if ignores.Excluded(rel, isDir) {
			return skipEntry(isDir)
		}

		if isDir {
			entries[rel] = &Entry{Path: rel, IsDir: true}
			s.pushIgnoreFile(ignores, rel, p, &warnings)
			return nil
		}

		if !d.Type().IsRegular() {
			// symlinks, devices, sockets and the like are not syncable
			warnings = append(warnings, ScanWarning{Path: rel, Err: fmt.Errorf("not a regular file (%s)", d.Type())})
			return nil
		}

		if s.allowed != nil && !s.allowed.Contains(strings.ToLower(path.Ext(name))) {
			return nil
		}
		if !s.opts.SyncDisallowed && !neocities.AllowedFreeExtension(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			warnings = append(warnings, ScanWarning{Path: rel, Err: err})
			return nil
		}

		entry := &Entry{Path: rel, Size: info.Size(), ModTime: info.ModTime()}
		if fp, ok := s.cache.Get(rel); ok && fp.size == entry.Size && fp.modTime.Equal(entry.ModTime) {
			entry.SHA1 = fp.sha1
		} else {
			jobs = append(jobs, hashJob{entry: entry, absPath: p})
		}
		entries[rel] = entry
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}

	if err := s.fingerprintAll(ctx, entries, jobs, &warnings); err != nil {
		return nil, warnings, err
	}

	return entries, warnings, nil
}

// fingerprintAll hashes cache misses on a bounded worker pool; a single
// collector loop merges the results back into the entry set.
func (s *Scanner) fingerprintAll(ctx context.Context, entries map[string]*Entry, jobs []hashJob, warnings *[]ScanWarning) error {
	if len(jobs) == 0 {
		return nil
	}

	results := make(chan hashResult, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(maxHashConcurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := sha1File(job.absPath)
			results <- hashResult{path: job.entry.Path, sha1: sum, err: err}
			return nil
		})
	}
	err := g.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			*warnings = append(*warnings, ScanWarning{Path: res.path, Err: res.err})
			delete(entries, res.path)
			continue
		}
		entry := entries[res.path]
		entry.SHA1 = res.sha1
		s.cache.Add(res.path, fingerprint{size: entry.Size, modTime: entry.ModTime, sha1: res.sha1})
	}

	return err
}

func (s *Scanner) pushIgnoreFile(ignores *IgnoreStack, scopeDir, absDir string, warnings *[]ScanWarning) {
	ignorePath := filepath.Join(absDir, IgnoreFileName)
	if !utils.FileExists(ignorePath) {
		return
	}
	if err := ignores.PushFile(scopeDir, ignorePath); err != nil {
		*warnings = append(*warnings, ScanWarning{Path: path.Join(scopeDir, IgnoreFileName), Err: err})
	}
}

// sha1File computes the hex content fingerprint, the digest the remote
// listing reports for each file.
func sha1File(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha1.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("fingerprint %q: %w", filePath, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func skipEntry(isDir bool) error {
	if isDir {
		return fs.SkipDir
	}
	return nil
}

func parentDir(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}
