package scanner

import "context"

// ScannedFile represents a regular file found in the watched directory
type ScannedFile struct {
	Name string
	Path string
	Size int64
}

// Scanner lists the files present in a directory
type Scanner interface {
	// Scan lists the regular files of dir, sorted by name
	Scan(ctx context.Context, dir string) ([]ScannedFile, error)
}
