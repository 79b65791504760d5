package models

// Package is the metadata of a package as recorded in a repository
// database desc entry
type Package struct {
	// Core metadata
	Name         string
	Base         string
	Version      string
	Architecture string
	Description  string
	Packager     string
	Homepage     string
	Licenses     []string
	Dependencies []string
	Conflicts    []string
	Provides     []string
	Groups       []string

	// File information
	Filename      string
	Size          int64
	InstalledSize int64
	BuildDate     int64
	MD5Sum        string
	SHA256Sum     string
	PGPSig        string
}
