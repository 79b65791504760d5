package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Fsnotify is a portable Source built on fsnotify. fsnotify has no
// close-write notification, so every write is reported as CloseWrite and
// the same file may be reported several times.
type Fsnotify struct {
	fsw    *fsnotify.Watcher
	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once
}

// NewFsnotify watches dir with fsnotify
func NewFsnotify(dir string) (*Fsnotify, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Fsnotify{
		fsw:    fsw,
		events: make(chan Event),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
	go w.run()

	return w, nil
}

// Events returns the event channel
func (w *Fsnotify) Events() <-chan Event { return w.events }

// Errors returns the error channel
func (w *Fsnotify) Errors() <-chan error { return w.errors }

// Close ends the subscription
func (w *Fsnotify) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Fsnotify) run() {
	defer close(w.events)

	for {
		select {
		case <-w.done:
			return

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			ev := Event{Name: filepath.Base(evt.Name), Kind: kindFromOp(evt.Op)}
			select {
			case w.events <- ev:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				err = ErrOverflow
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

func kindFromOp(op fsnotify.Op) EventKind {
	switch {
	case op.Has(fsnotify.Remove):
		return Delete
	case op.Has(fsnotify.Rename):
		return MovedFrom
	case op.Has(fsnotify.Create):
		return MovedTo
	case op.Has(fsnotify.Write):
		return CloseWrite
	default:
		return Other
	}
}
