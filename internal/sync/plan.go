package sync

import (
	"sort"
	"strings"

	"github.com/pixelhosted/neosync/internal/neocities"
)

// Plan diffs the local entry set against the remote listing and returns the
// ordered action plan: uploads, then deletes, then directory removals.
// Uploads and deletes are ordered lexicographically; removals deepest-first
// so no directory is removed before anything nested beneath it.
//
// Pure function of its inputs: no I/O, deterministic for fixed inputs, and
// a plan applied cleanly reconciles to an empty plan on the next run.
func Plan(local, remote map[string]*Entry, opts Options) []Action {
	uploads := planUploads(local, remote, opts)
	deletes, deletedDirs := planDeletes(local, remote, opts)

	sortByPath(uploads)
	sortByPath(deletes)

	actions := append(uploads, deletes...)
	if opts.RemoveEmptyDirs {
		actions = append(actions, planDirRemovals(local, remote, deletedDirs, opts)...)
	}
	return actions
}

// managed reports whether a path participates in the sync at all. With
// sync_disallowed unset, file types reserved to paid-tier sites are left
// alone on both sides.
func managed(p string, isDir bool, opts Options) bool {
	if isDir || opts.SyncDisallowed {
		return true
	}
	return neocities.AllowedFreeExtension(p)
}

func planUploads(local, remote map[string]*Entry, opts Options) []Action {
	var uploads []Action
	for p, l := range local {
		if l.IsDir || !managed(p, false, opts) {
			continue
		}
		r, ok := remote[p]
		switch {
		case !ok:
			uploads = append(uploads, Action{Type: ActionUpload, Path: p, Reason: "not on remote"})
		case r.IsDir:
			// path is a directory remotely: the delete phase clears it this
			// run, the upload happens on the next run once the path is free
		case r.SHA1 != l.SHA1:
			uploads = append(uploads, Action{Type: ActionUpload, Path: p, Reason: "fingerprint mismatch"})
		}
	}
	return uploads
}

// planDeletes returns the file and mismatch deletes plus the set of remote
// directories scheduled for deletion (their contents go with them).
func planDeletes(local, remote map[string]*Entry, opts Options) ([]Action, map[string]bool) {
	deletedDirs := make(map[string]bool)
	var candidates []Action

	for p, r := range remote {
		l, ok := local[p]
		if r.IsDir {
			if ok && !l.IsDir {
				// remote directory shadows a local file
				deletedDirs[p] = true
			}
			continue
		}
		if !managed(p, false, opts) {
			continue
		}
		switch {
		case !ok:
			candidates = append(candidates, Action{Type: ActionDelete, Path: p, Reason: "not in local tree"})
		case l.IsDir:
			candidates = append(candidates, Action{Type: ActionDelete, Path: p, Reason: "path is a directory locally"})
		}
	}

	var deletes []Action
	for dir := range deletedDirs {
		if !underAny(dir, deletedDirs) {
			deletes = append(deletes, Action{Type: ActionDelete, Path: dir, Reason: "path is a file locally"})
		}
	}
	for _, action := range candidates {
		// the server deletes directories recursively; skip anything already
		// covered by a directory delete
		if underAny(action.Path, deletedDirs) {
			continue
		}
		deletes = append(deletes, action)
	}

	return deletes, deletedDirs
}

// planDirRemovals emits RemoveDir for every remote directory left without
// files once the planned deletes are applied, deepest first. Directories
// holding local content are kept: uploads land beneath them. Unmanaged
// files are never deleted, so they keep their ancestors alive too; the
// server deletes directories recursively and must not reach them.
func planDirRemovals(local, remote map[string]*Entry, deletedDirs map[string]bool, opts Options) []Action {
	deletedFiles := make(map[string]bool)
	for p, r := range remote {
		if r.IsDir || !managed(p, false, opts) {
			continue
		}
		if _, ok := local[p]; !ok || underAny(p, deletedDirs) {
			deletedFiles[p] = true
		}
	}

	hasContent := func(dir string) bool {
		prefix := dir + "/"
		for p, r := range remote {
			if !r.IsDir && !deletedFiles[p] && strings.HasPrefix(p, prefix) {
				return true
			}
		}
		for p, l := range local {
			if !l.IsDir && strings.HasPrefix(p, prefix) {
				return true
			}
		}
		return false
	}

	var removals []Action
	for p, r := range remote {
		if !r.IsDir || deletedDirs[p] || underAny(p, deletedDirs) {
			continue
		}
		if hasContent(p) {
			continue
		}
		removals = append(removals, Action{Type: ActionRemoveDir, Path: p, Reason: "empty directory"})
	}

	// reverse-lexicographic puts children before their ancestors
	sort.Slice(removals, func(i, j int) bool {
		return removals[i].Path > removals[j].Path
	})
	return removals
}

// underAny reports whether p is nested beneath any of the given directories.
func underAny(p string, dirs map[string]bool) bool {
	for dir := range dirs {
		if strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

func sortByPath(actions []Action) {
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Path < actions[j].Path
	})
}
