// Package watcher delivers filesystem change notifications for a single
// directory.
package watcher

import (
	"errors"
	"fmt"
)

// EventKind is the kind of change reported for a file
type EventKind int

const (
	Other EventKind = iota
	CloseWrite
	Delete
	MovedFrom
	MovedTo
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case CloseWrite:
		return "close-write"
	case Delete:
		return "delete"
	case MovedFrom:
		return "moved-from"
	case MovedTo:
		return "moved-to"
	default:
		return "other"
	}
}

// Event is a change to a file in the watched directory. Name is relative
// to the directory.
type Event struct {
	Name string
	Kind EventKind
}

// String returns a human readable form of the event
func (e Event) String() string {
	return fmt.Sprintf("%s %q", e.Kind, e.Name)
}

// ErrOverflow is reported on the error channel when the kernel dropped
// events. Consumers should rescan the directory.
var ErrOverflow = errors.New("event queue overflow")

// Source is a live subscription to the changes of one directory. Events
// for a given file are delivered in the order they happened. The events
// channel is closed when the subscription ends.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// Backend selects the notification mechanism
type Backend string

const (
	BackendInotify  Backend = "inotify"
	BackendFsnotify Backend = "fsnotify"
)

// New subscribes to the changes of dir with the given backend
func New(backend Backend, dir string) (Source, error) {
	switch backend {
	case BackendInotify:
		w, err := NewInotify(dir)
		if err != nil {
			return nil, err
		}
		return w, nil
	case BackendFsnotify:
		w, err := NewFsnotify(dir)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown watch backend: %q", backend)
	}
}
