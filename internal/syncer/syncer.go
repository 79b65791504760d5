// Package syncer runs the loop that turns filesystem events into
// repository state changes and commits.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/ralt/reposyncd/internal/committer"
	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/pkgref"
	"github.com/ralt/reposyncd/internal/scanner"
	"github.com/ralt/reposyncd/internal/state"
	"github.com/ralt/reposyncd/internal/watcher"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Config controls the sync loop
type Config struct {
	// Dir is the watched directory
	Dir string

	// Sentinel is the filename that triggers a commit
	Sentinel string

	// Workers bounds how many events are parsed concurrently
	Workers int

	// Rescan rebuilds the state from Dir when Run starts
	Rescan bool
}

// Syncer owns the repository state. Events are classified and parsed
// concurrently, but their effects are applied one at a time, in the order
// the events were received, by the goroutine running Run.
type Syncer struct {
	config    Config
	state     *state.State
	committer committer.Committer
	scanner   scanner.Scanner
	workers   *semaphore.Weighted
}

// New creates a Syncer applying changes to st and committing through c
func New(config Config, st *state.State, c committer.Committer) *Syncer {
	if config.Sentinel == "" {
		config.Sentinel = DefaultSentinel
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	return &Syncer{
		config:    config,
		state:     st,
		committer: c,
		scanner:   scanner.NewFileSystemScanner(),
		workers:   semaphore.NewWeighted(int64(config.Workers)),
	}
}

// State returns the state owned by the syncer
func (s *Syncer) State() *state.State {
	return s.state
}

// Run consumes events from src until the subscription ends or ctx is
// cancelled. It must not be called concurrently with Apply, Commit or
// Rescan.
func (s *Syncer) Run(ctx context.Context, src watcher.Source) error {
	if s.config.Rescan {
		if err := s.Rescan(ctx); err != nil {
			return err
		}
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each queued channel yields the decision for one event or source
	// error, in arrival order
	queue := make(chan chan Decision, s.config.Workers)
	go s.dispatch(dispatchCtx, src, queue)

	logrus.Infof("Watching %s, waiting for %q", s.config.Dir, s.config.Sentinel)

	// The last thing seen before the subscription ends, if it was an error
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return nil

		case slot, ok := <-queue:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if lastErr != nil && !errors.Is(lastErr, watcher.ErrOverflow) {
					return &models.Error{
						Type:    models.ErrWatch,
						Package: s.config.Dir,
						Err:     fmt.Errorf("event subscription ended: %w", lastErr),
					}
				}
				logrus.Info("Event subscription ended")
				return nil
			}

			var d Decision
			select {
			case d = <-slot:
			case <-ctx.Done():
				return nil
			}
			lastErr = d.SourceErr
			s.apply(ctx, d)
		}
	}
}

// dispatch starts a classify-and-parse task per event and queues its
// result slot. Source errors are queued in line with the events so that a
// rescan only happens once the events received before it are applied.
// It closes queue when the events channel is closed or ctx is done.
func (s *Syncer) dispatch(ctx context.Context, src watcher.Source, queue chan<- chan Decision) {
	defer close(queue)

	events, errs := src.Events(), src.Errors()
	for {
		var ev watcher.Event
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if !enqueue(ctx, queue, Decision{SourceErr: err}) {
				return
			}
			continue
		case e, ok := <-events:
			if !ok {
				// An error sent right before the end explains it
				select {
				case err := <-errs:
					enqueue(ctx, queue, Decision{SourceErr: err})
				default:
				}
				return
			}
			ev = e
		}

		if err := s.workers.Acquire(ctx, 1); err != nil {
			return
		}

		slot := make(chan Decision, 1)
		go func() {
			defer s.workers.Release(1)
			slot <- Decide(ev, s.config.Sentinel)
		}()

		select {
		case queue <- slot:
		case <-ctx.Done():
			return
		}
	}
}

// enqueue queues an already made decision
func enqueue(ctx context.Context, queue chan<- chan Decision, d Decision) bool {
	slot := make(chan Decision, 1)
	slot <- d
	select {
	case queue <- slot:
		return true
	case <-ctx.Done():
		return false
	}
}

// Apply classifies a single event and applies it synchronously
func (s *Syncer) Apply(ctx context.Context, ev watcher.Event) {
	s.apply(ctx, Decide(ev, s.config.Sentinel))
}

func (s *Syncer) apply(ctx context.Context, d Decision) {
	if d.SourceErr != nil {
		s.handleSourceError(ctx, d.SourceErr)
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"file":  d.Event.Name,
		"event": d.Event.Kind,
	})

	switch d.Action {
	case ActionAdd:
		merged := s.state.Upsert(d.Ref)
		log.Infof("Adding %s of %s (binary: %t, signed: %t)", state.FlagOf(d.Ref), d.Ref.Identity(), merged.Binary, merged.Signed)

	case ActionRemove:
		flag := state.FlagOf(d.Ref)
		if s.state.ClearFlag(d.Ref.Identity(), flag) {
			log.Infof("Removing %s of %s", flag, d.Ref.Identity())
		} else {
			log.Debugf("%s is not tracked", d.Ref.Identity())
		}

	case ActionCommit:
		log.Infof("Found %s file", s.config.Sentinel)
		var rejected *committer.RejectedError
		if err := s.Commit(ctx); errors.As(err, &rejected) {
			log.Warnf("Commit incomplete: %v", err)
		} else if err != nil {
			log.Errorf("Commit failed: %v", err)
		}

	default:
		if errors.Is(d.Err, &models.Error{Type: models.ErrUnhandledEvent}) {
			log.Warn(d.Err)
		} else {
			log.Infof("Ignoring file: %v", d.Err)
		}
	}
}

// Commit hands the ready packages to the committer. On failure they are
// put back into the state so that the next commit retries them. Packages
// the committer rejected are not retried: they are tracked again once
// their files are rewritten.
func (s *Syncer) Commit(ctx context.Context) error {
	batch := s.state.Commit()
	if batch.Empty() {
		logrus.Infof("Nothing to commit, %d packages pending", len(batch.Pending))
		return nil
	}

	logrus.Infof("Committing %d packages, %d removals, %d pending", len(batch.Ready), len(batch.Dropped), len(batch.Pending))
	err := s.committer.Commit(ctx, batch)

	var rejected *committer.RejectedError
	switch {
	case err == nil:
	case errors.As(err, &rejected):
		for _, ref := range rejected.Refs {
			logrus.Warnf("Rejected %s, rewrite its files to retry", ref.Identity())
		}
	default:
		s.state.Restore(batch)
	}
	return err
}

// Rescan rebuilds the state from the artifacts currently in the directory
func (s *Syncer) Rescan(ctx context.Context) error {
	files, err := s.scanner.Scan(ctx, s.config.Dir)
	if err != nil {
		return &models.Error{Type: models.ErrFileOp, Package: s.config.Dir, Err: err}
	}

	var refs []pkgref.Ref
	for _, f := range files {
		if !pkgref.IsArtifact(f.Name) {
			continue
		}
		ref, err := pkgref.Parse(f.Name)
		if err != nil {
			logrus.Infof("Ignoring file: %v", err)
			continue
		}
		refs = append(refs, ref)
	}

	s.state.Rebuild(refs)
	logrus.Infof("Rescanned %s: tracking %d packages", s.config.Dir, s.state.Len())
	for _, ref := range s.state.Snapshot() {
		logrus.Debugf("  %s (binary: %t, signed: %t)", ref.Identity(), ref.Binary, ref.Signed)
	}
	return nil
}

func (s *Syncer) handleSourceError(ctx context.Context, err error) {
	if !errors.Is(err, watcher.ErrOverflow) {
		logrus.Warnf("Watcher error: %v", err)
		return
	}

	logrus.Warn("Events were lost, rescanning")
	if err := s.Rescan(ctx); err != nil {
		logrus.Errorf("Rescan failed: %v", err)
	}
}
