package pkgref

import (
	"cmp"
	"fmt"
	"strings"
)

const (
	// PackageSuffix is the extension of a package payload
	PackageSuffix = ".pkg.tar.xz"

	// SignatureSuffix is appended to the payload name for its detached signature
	SignatureSuffix = ".sig"
)

// Arch is the target architecture of a package
type Arch int

const (
	ArchI686 Arch = iota + 1
	ArchX86_64
	ArchAny
)

// String returns the literal token of the architecture
func (a Arch) String() string {
	switch a {
	case ArchI686:
		return "i686"
	case ArchX86_64:
		return "x86_64"
	case ArchAny:
		return "any"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the known architectures
func (a Arch) Valid() bool {
	return a >= ArchI686 && a <= ArchAny
}

// ParseArch maps an architecture token to an Arch
func ParseArch(s string) (Arch, bool) {
	switch s {
	case "i686":
		return ArchI686, true
	case "x86_64":
		return ArchX86_64, true
	case "any":
		return ArchAny, true
	default:
		return 0, false
	}
}

// Identity uniquely identifies a package version, regardless of which of its
// artifacts have been observed. It is comparable and usable as a map key.
type Identity struct {
	Name    string
	Version string
	Rel     uint
	Epoch   uint
	Arch    Arch
}

// String renders the identity as NAME [EPOCH:]VER-REL ARCH
func (id Identity) String() string {
	return fmt.Sprintf("%s %s %s", id.Name, id.FullVersion(), id.Arch)
}

// FullVersion returns the pacman version string [EPOCH:]VER-REL
func (id Identity) FullVersion() string {
	return fullVersion(id.Epoch, id.Version, id.Rel)
}

// Compare orders identities by name, epoch, version, release and arch
func (id Identity) Compare(other Identity) int {
	return cmp.Or(
		cmp.Compare(id.Name, other.Name),
		cmp.Compare(id.Epoch, other.Epoch),
		cmp.Compare(id.Version, other.Version),
		cmp.Compare(id.Rel, other.Rel),
		cmp.Compare(id.Arch, other.Arch),
	)
}

// Ref is the parsed form of a package artifact filename. Binary and Signed
// record which artifacts of the package have been seen.
type Ref struct {
	Name    string
	Version string
	Rel     uint
	Epoch   uint
	Arch    Arch

	Binary bool
	Signed bool
}

// Identity returns the identity part of the reference
func (r Ref) Identity() Identity {
	return Identity{
		Name:    r.Name,
		Version: r.Version,
		Rel:     r.Rel,
		Epoch:   r.Epoch,
		Arch:    r.Arch,
	}
}

// Ready reports whether both the payload and its signature are present
func (r Ref) Ready() bool {
	return r.Binary && r.Signed
}

// FullVersion returns the pacman version string [EPOCH:]VER-REL
func (r Ref) FullVersion() string {
	return fullVersion(r.Epoch, r.Version, r.Rel)
}

// PayloadFilename returns the filename of the package payload
func (r Ref) PayloadFilename() string {
	r.Signed = false
	return Format(r)
}

// SignatureFilename returns the filename of the detached signature
func (r Ref) SignatureFilename() string {
	r.Signed = true
	return Format(r)
}

// String returns the canonical filename of the reference
func (r Ref) String() string {
	return Format(r)
}

// Validate checks that the reference can be formatted into a filename that
// parses back to the same identity.
func (r Ref) Validate() error {
	if r.Name == "" {
		return ErrEmptyPkgname
	}
	if r.Version == "" {
		return ErrEmptyPkgver
	}
	if strings.ContainsAny(r.Version, "-:") {
		return fmt.Errorf("%w: %q contains '-' or ':'", ErrInvalidPkgver, r.Version)
	}
	if r.Rel == 0 {
		return ErrInvalidPkgrel
	}
	if !r.Arch.Valid() {
		return ErrUnknownArch
	}
	return nil
}

// Format renders the canonical filename of a reference:
// NAME-[EPOCH:]VER-REL-ARCH.pkg.tar.xz[.sig]
func Format(r Ref) string {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteByte('-')
	b.WriteString(r.FullVersion())
	b.WriteByte('-')
	b.WriteString(r.Arch.String())
	b.WriteString(PackageSuffix)
	if r.Signed {
		b.WriteString(SignatureSuffix)
	}
	return b.String()
}

func fullVersion(epoch uint, version string, rel uint) string {
	if epoch == 0 {
		return fmt.Sprintf("%s-%d", version, rel)
	}
	return fmt.Sprintf("%d:%s-%d", epoch, version, rel)
}
