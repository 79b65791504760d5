package pkgref

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Rejection reasons. Every one of them means "not a package artifact"; they
// only differ for diagnostics.
var (
	ErrMissingSuffix = errors.New("missing " + PackageSuffix + " suffix")
	ErrTooFewFields  = errors.New("expected NAME-VERSION-REL-ARCH")
	ErrUnknownArch   = errors.New("unknown architecture")
	ErrInvalidPkgrel = errors.New("pkgrel must be a positive integer")
	ErrInvalidEpoch  = errors.New("epoch must be a non-negative integer")
	ErrEmptyPkgver   = errors.New("empty pkgver")
	ErrInvalidPkgver = errors.New("invalid pkgver")
	ErrEmptyPkgname  = errors.New("empty pkgname")
)

// ParseError is returned when a filename is not a package artifact
type ParseError struct {
	Filename string
	Err      error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// Unwrap returns the rejection reason
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse turns an artifact filename into a Ref. A filename ending in .sig
// yields a Signed reference, any other filename a Binary one.
func Parse(filename string) (Ref, error) {
	var ref Ref
	log := logrus.WithField("file", filename)

	reject := func(err error) (Ref, error) {
		log.Debugf("Rejected: %v", err)
		return Ref{}, &ParseError{Filename: filename, Err: err}
	}

	// Signature or payload
	rest, signed := strings.CutSuffix(filename, SignatureSuffix)
	ref.Signed = signed
	ref.Binary = !signed

	rest, ok := strings.CutSuffix(rest, PackageSuffix)
	if !ok {
		return reject(ErrMissingSuffix)
	}

	// The three rightmost fields are fixed; pkgname takes whatever is left
	// and may contain dashes itself.
	var fields [3]string
	for i := len(fields) - 1; i >= 0; i-- {
		idx := strings.LastIndexByte(rest, '-')
		if idx < 0 {
			return reject(ErrTooFewFields)
		}
		fields[i] = rest[idx+1:]
		rest = rest[:idx]
	}
	versionField, relField, archField := fields[0], fields[1], fields[2]
	log.Debugf("Fields: name=%q version=%q rel=%q arch=%q", rest, versionField, relField, archField)

	arch, ok := ParseArch(archField)
	if !ok {
		return reject(fmt.Errorf("%w %q", ErrUnknownArch, archField))
	}
	ref.Arch = arch

	rel, err := strconv.ParseUint(relField, 10, 0)
	if err != nil || rel == 0 {
		return reject(fmt.Errorf("%w, got %q", ErrInvalidPkgrel, relField))
	}
	ref.Rel = uint(rel)

	if epochField, version, found := strings.Cut(versionField, ":"); found {
		epoch, err := strconv.ParseUint(epochField, 10, 0)
		if err != nil {
			return reject(fmt.Errorf("%w, got %q", ErrInvalidEpoch, epochField))
		}
		ref.Epoch = uint(epoch)
		ref.Version = version
	} else {
		ref.Version = versionField
	}
	if ref.Version == "" {
		return reject(ErrEmptyPkgver)
	}

	if rest == "" {
		return reject(ErrEmptyPkgname)
	}
	ref.Name = rest

	log.Debugf("Parsed package %s", ref.Identity())
	return ref, nil
}

// IsArtifact reports whether filename carries a payload or signature suffix.
// It does not validate the rest of the name.
func IsArtifact(filename string) bool {
	return strings.HasSuffix(filename, PackageSuffix) || strings.HasSuffix(filename, PackageSuffix+SignatureSuffix)
}
