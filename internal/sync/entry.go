package sync

import (
	"time"
)

// Entry is one file or directory of a local or remote tree snapshot.
// Paths are root-relative with forward slashes.
type Entry struct {
	Path    string
	IsDir   bool
	Size    int64
	SHA1    string // hex content fingerprint, empty for directories
	ModTime time.Time
}

// Options are the per-site flags that shape scanning and planning.
type Options struct {
	SyncDisallowed    bool
	SyncHidden        bool
	SyncVCS           bool
	AllowedExtensions []string
	RemoveEmptyDirs   bool
}

type ActionType string

const (
	ActionUpload    ActionType = "Upload"
	ActionDelete    ActionType = "Delete"
	ActionRemoveDir ActionType = "RemoveDir"
)

// Action is one planned remote mutation. Plain value, no state.
type Action struct {
	Type   ActionType
	Path   string
	Reason string
}

type ActionResult struct {
	Action
	Err error
}

// Report is the outcome of executing (or dry-running) one plan.
type Report struct {
	Succeeded []ActionResult
	Failed    []ActionResult
	Skipped   []ActionResult
}

// Ok reports whether every attempted action succeeded.
func (r *Report) Ok() bool {
	return len(r.Failed) == 0
}
