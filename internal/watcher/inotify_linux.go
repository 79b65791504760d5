package watcher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_CLOSE_WRITE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_ONLYDIR

// Inotify is a Source reading the kernel's inotify queue directly, which
// reports close-write and rename halves exactly.
type Inotify struct {
	file   *os.File
	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once
}

// NewInotify watches dir with inotify
func NewInotify(dir string) (*Inotify, error) {
	// Non-blocking so that the runtime poller owns the descriptor and
	// Close interrupts a pending Read.
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	if _, err := unix.InotifyAddWatch(fd, dir, inotifyMask); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Inotify{
		file:   os.NewFile(uintptr(fd), "inotify"),
		events: make(chan Event),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
	go w.run()

	return w, nil
}

// Events returns the event channel
func (w *Inotify) Events() <-chan Event { return w.events }

// Errors returns the error channel
func (w *Inotify) Errors() <-chan error { return w.errors }

// Close ends the subscription
func (w *Inotify) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.file.Close()
	})
	return err
}

func (w *Inotify) run() {
	defer close(w.events)

	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	for {
		n, err := w.file.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return
			}
			w.sendError(fmt.Errorf("read inotify events: %w", err))
			return
		}

		for offset := 0; offset+unix.SizeofInotifyEvent <= n; {
			mask := binary.NativeEndian.Uint32(buf[offset+4:])
			nameLen := int(binary.NativeEndian.Uint32(buf[offset+12:]))
			start := offset + unix.SizeofInotifyEvent
			end := min(start+nameLen, n)
			name := strings.TrimRight(string(buf[start:end]), "\x00")
			offset = start + nameLen

			switch {
			case mask&unix.IN_Q_OVERFLOW != 0:
				if !w.sendError(ErrOverflow) {
					return
				}
				continue
			case mask&unix.IN_IGNORED != 0:
				// The watched directory is gone
				w.sendError(errors.New("watched directory was removed"))
				return
			}

			if !w.sendEvent(Event{Name: name, Kind: kindFromMask(mask)}) {
				return
			}
		}
	}
}

func (w *Inotify) sendEvent(ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.done:
		return false
	}
}

func (w *Inotify) sendError(err error) bool {
	select {
	case w.errors <- err:
		return true
	case <-w.done:
		return false
	}
}

func kindFromMask(mask uint32) EventKind {
	switch {
	case mask&unix.IN_CLOSE_WRITE != 0:
		return CloseWrite
	case mask&unix.IN_MOVED_TO != 0:
		return MovedTo
	case mask&unix.IN_DELETE != 0:
		return Delete
	case mask&unix.IN_MOVED_FROM != 0:
		return MovedFrom
	default:
		return Other
	}
}
