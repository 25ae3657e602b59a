package sync

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
)

const defaultActionConcurrency = 4

// RemoteAPI is the mutating surface of the remote site consumed by the
// executor. *neocities.Client implements it.
type RemoteAPI interface {
	Upload(ctx context.Context, remotePath, localPath string) error
	Delete(ctx context.Context, remotePaths ...string) error
}

// Executor applies an action plan against the remote API. Every action is
// attempted independently; one failure never aborts the rest of the plan.
type Executor struct {
	api     RemoteAPI
	root    string
	dryRun  bool
	workers int
}

func NewExecutor(api RemoteAPI, root string, dryRun bool, workers int) *Executor {
	if workers <= 0 {
		workers = defaultActionConcurrency
	}
	return &Executor{api: api, root: root, dryRun: dryRun, workers: workers}
}

// Execute runs the plan. Uploads and file deletes go through a bounded
// worker pool; directory removals run sequentially after the pool drains,
// already deepest-first in plan order. Cancellation stops scheduling new
// actions but lets started ones complete; unscheduled actions are reported
// as skipped.
func (e *Executor) Execute(ctx context.Context, actions []Action) *Report {
	report := &Report{}

	var fileActions, dirActions []Action
	for _, action := range actions {
		if action.Type == ActionRemoveDir {
			dirActions = append(dirActions, action)
		} else {
			fileActions = append(fileActions, action)
		}
	}

	if e.dryRun {
		for _, action := range actions {
			slog.Info("would apply", "op", action.Type, "path", action.Path, "reason", action.Reason)
			report.Skipped = append(report.Skipped, ActionResult{Action: action})
		}
		return report
	}

	var mu sync.Mutex
	record := func(action Action, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed = append(report.Failed, ActionResult{Action: action, Err: err})
		} else {
			report.Succeeded = append(report.Succeeded, ActionResult{Action: action})
		}
	}

	opsChan := make(chan Action, len(fileActions))
	for _, action := range fileActions {
		opsChan <- action
	}
	close(opsChan)

	var wg sync.WaitGroup
	workers := min(e.workers, len(fileActions))
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for {
				// checked before the select: with the context done and the
				// channel non-empty the select alone would pick either way
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case action, ok := <-opsChan:
					if !ok {
						return
					}
					record(action, e.apply(ctx, action))
				}
			}
		}()
	}
	wg.Wait()

	// anything still queued was never scheduled
	for action := range opsChan {
		report.Skipped = append(report.Skipped, ActionResult{Action: action, Err: ctx.Err()})
	}

	// directory removals strictly after all file-level deletes
	for _, action := range dirActions {
		if ctx.Err() != nil {
			report.Skipped = append(report.Skipped, ActionResult{Action: action, Err: ctx.Err()})
			continue
		}
		record(action, e.apply(ctx, action))
	}

	return report
}

func (e *Executor) apply(ctx context.Context, action Action) error {
	// once handed to a worker an action runs to completion; the client's
	// per-call timeout still bounds it
	callCtx := context.WithoutCancel(ctx)

	var err error
	switch action.Type {
	case ActionUpload:
		localPath := filepath.Join(e.root, filepath.FromSlash(action.Path))
		err = e.api.Upload(callCtx, action.Path, localPath)
	case ActionDelete, ActionRemoveDir:
		err = e.api.Delete(callCtx, action.Path)
	}

	if err != nil {
		slog.Error("sync", "op", action.Type, "path", action.Path, "error", err)
	} else {
		slog.Info("sync", "op", action.Type, "path", action.Path, "reason", action.Reason)
	}
	return err
}
