//go:build !linux

package watcher

import "errors"

// Inotify is only available on Linux
type Inotify struct {
	Source
}

// NewInotify always fails outside Linux; use the fsnotify backend instead
func NewInotify(dir string) (*Inotify, error) {
	return nil, errors.New("inotify backend requires linux, use the fsnotify backend")
}
