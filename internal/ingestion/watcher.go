package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/axon-metrics/internal/storage"
)

// DefaultDebounce is the quiet period after the last change before the
// pipeline reruns.
const DefaultDebounce = 2 * time.Second

// WatchOptions configures WatchRepo.
type WatchOptions struct {
	// Pipeline configures each rerun.
	Pipeline Options

	// Debounce is the quiet period before a rerun; zero uses
	// DefaultDebounce.
	Debounce time.Duration

	// OnRun is called after every rerun attempt.
	OnRun func(*Analysis, error)
}

// WatchRepo monitors a repository for file changes and reruns the full
// pipeline after each debounced batch. Batches that leave the walked inputs
// unchanged are skipped. Blocks until the context is cancelled.
func WatchRepo(ctx context.Context, repoPath string, store storage.Backend, opts WatchOptions) error {
	logger := opts.Pipeline.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	filter := opts.Pipeline.Walk.Filter
	if filter == nil {
		filter = NewExtensionFilter()
	}

	patterns, err := loadGitignore(repoPath)
	if err != nil {
		logger.Warn("ignoring unreadable .gitignore", "err", err)
	}
	matcher := newMatcher(patterns, opts.Pipeline.Walk)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatches(watcher, repoPath, repoPath, matcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	lastFingerprint := ""
	if entries, err := WalkRepo(repoPath, patterns, opts.Pipeline.Walk); err == nil {
		lastFingerprint = Fingerprint(entries)
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()

	logger.Info("watching for changes", "root", repoPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addWatches(watcher, event.Name, repoPath, matcher); err != nil {
						logger.Warn("watching new directory", "dir", event.Name, "err", err)
					}
					continue
				}
			}

			if !shouldWatchFile(event.Name, repoPath, matcher, filter, opts.Pipeline.Walk) {
				continue
			}
			rel, err := filepath.Rel(repoPath, event.Name)
			if err != nil {
				continue
			}
			changed[filepath.ToSlash(rel)] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			logger.Debug("change batch", "files", len(changed))
			changed = make(map[string]bool)

			entries, err := WalkRepo(repoPath, patterns, opts.Pipeline.Walk)
			if err == nil && Fingerprint(entries) == lastFingerprint {
				logger.Debug("inputs unchanged, skipping rerun")
				continue
			}

			a, err := RunPipeline(ctx, repoPath, store, opts.Pipeline)
			if errors.Is(err, context.Canceled) {
				return err
			}
			if err != nil {
				logger.Error("rerunning pipeline", "err", err)
			} else {
				lastFingerprint = a.Result.Fingerprint
				logger.Info("metrics updated", "files", a.Result.Files, "nodes", a.Result.Nodes)
			}
			if opts.OnRun != nil {
				opts.OnRun(a, err)
			}
		}
	}
}

// addWatches watches dir and every directory below it that is not ignored.
func addWatches(watcher *fsnotify.Watcher, dir, repoPath string, matcher gitignore.Matcher) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != repoPath && shouldSkipDir(d.Name(), path, repoPath, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldWatchFile checks if a changed path is an accepted, non-ignored
// source file.
func shouldWatchFile(path, repoPath string, matcher gitignore.Matcher, filter *ExtensionFilter, opts WalkOptions) bool {
	if !acceptFile(filepath.Base(path), filter, opts) {
		return false
	}
	rel, err := filepath.Rel(repoPath, path)
	if err != nil {
		return false
	}
	return matcher == nil || !matcher.Match(splitPath(rel), false)
}
