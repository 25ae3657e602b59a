package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"github.com/pixelhosted/neosync/internal/config"
	"github.com/pixelhosted/neosync/internal/neocities"
	"github.com/pixelhosted/neosync/internal/utils"
)

var ErrSiteLocked = errors.New("site root locked by another process")

// RunOptions are the run-mode switches shared by all sites of one
// invocation.
type RunOptions struct {
	DryRun      bool
	Concurrency int
}

// Runner drives one full sync for one site: lock, scan, list, plan,
// execute. Runners are single-site; the fingerprint cache inside the
// scanner never crosses site credentials.
type Runner struct {
	site     *config.SiteConfig
	client   *neocities.Client
	scanner  *Scanner
	executor *Executor
	opts     Options
}

func NewRunner(site *config.SiteConfig, client *neocities.Client, run RunOptions) (*Runner, error) {
	opts := Options{
		SyncDisallowed:    site.SyncDisallowed,
		SyncHidden:        site.SyncHidden,
		SyncVCS:           site.SyncVCS,
		AllowedExtensions: site.AllowedExtensions,
		RemoveEmptyDirs:   site.RemoveEmptyDirs,
	}

	scanner, err := NewScanner(site.RootDir, opts)
	if err != nil {
		return nil, err
	}

	return &Runner{
		site:     site,
		client:   client,
		scanner:  scanner,
		executor: NewExecutor(client, site.RootDir, run.DryRun, run.Concurrency),
		opts:     opts,
	}, nil
}

// Run performs one sync and returns the execution report. The returned
// error covers fatal conditions only (lock, unreadable root, failed remote
// listing); per-action failures live in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !utils.DirExists(r.site.RootDir) {
		return nil, fmt.Errorf("root_dir %q is not a directory", r.site.RootDir)
	}

	lock := flock.New(filepath.Join(r.site.RootDir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock site root: %w", err)
	}
	if !locked {
		return nil, ErrSiteLocked
	}
	// the lock file stays behind: unlinking it after Unlock would race a
	// process that grabbed the flock in between, and the scanner never
	// syncs it anyway
	defer lock.Unlock()

	tStart := time.Now()

	local, warnings, err := r.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", r.site.RootDir, err)
	}
	for _, warning := range warnings {
		slog.Warn("skipping entry", "site", r.site.Name, "path", warning.Path, "error", warning.Err)
	}
	slog.Info("scanned local tree", "site", r.site.Name, "files", countFiles(local), "dirs", len(local)-countFiles(local))

	remoteFiles, err := r.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote: %w", err)
	}
	remote := RemoteEntries(remoteFiles)
	slog.Info("fetched remote listing", "site", r.site.Name, "files", countFiles(remote), "dirs", len(remote)-countFiles(remote))

	actions := Plan(local, remote, r.opts)
	slog.Info("computed plan",
		"site", r.site.Name,
		"actions", len(actions),
		"pending", humanize.Bytes(uploadBytes(actions, local)),
	)

	report := r.executor.Execute(ctx, actions)
	slog.Info("sync finished",
		"site", r.site.Name,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"took", time.Since(tStart).Round(time.Millisecond),
	)
	return report, nil
}

// RemoteEntries converts a remote listing into the entry map consumed by
// Plan, normalizing paths the same way the scanner does.
func RemoteEntries(files []*neocities.RemoteFile) map[string]*Entry {
	remote := make(map[string]*Entry, len(files))
	for _, f := range files {
		p := utils.NormPath(f.Path)
		remote[p] = &Entry{
			Path:  p,
			IsDir: f.IsDirectory,
			Size:  f.Size,
			SHA1:  f.SHA1Hash,
		}
	}
	return remote
}

func countFiles(entries map[string]*Entry) int {
	n := 0
	for _, e := range entries {
		if !e.IsDir {
			n++
		}
	}
	return n
}

func uploadBytes(actions []Action, local map[string]*Entry) uint64 {
	var total uint64
	for _, action := range actions {
		if action.Type != ActionUpload {
			continue
		}
		if e, ok := local[action.Path]; ok {
			total += uint64(e.Size)
		}
	}
	return total
}
