// Package state tracks the package artifacts observed in the watched
// directory until they are committed to the repository database.
package state

import (
	"maps"
	"slices"
	"sync"

	"github.com/ralt/reposyncd/internal/pkgref"
)

// Flag names one of the two artifacts of a package
type Flag int

const (
	FlagBinary Flag = iota
	FlagSigned
)

// String returns the string representation of Flag
func (f Flag) String() string {
	switch f {
	case FlagBinary:
		return "binary"
	case FlagSigned:
		return "signature"
	default:
		return "unknown"
	}
}

// FlagOf returns the flag corresponding to the artifact a reference was parsed from
func FlagOf(ref pkgref.Ref) Flag {
	if ref.Signed {
		return FlagSigned
	}
	return FlagBinary
}

// Batch is the result of a commit
type Batch struct {
	// Ready holds packages with both payload and signature present
	Ready []pkgref.Ref

	// Pending holds the packages that stay tracked after the commit
	Pending []pkgref.Ref

	// Dropped holds identities whose artifacts have all disappeared since
	// the previous commit
	Dropped []pkgref.Identity
}

// Empty reports whether the batch carries nothing for the repository
func (b Batch) Empty() bool {
	return len(b.Ready) == 0 && len(b.Dropped) == 0
}

// State is the set of tracked packages, keyed by identity. It is safe for
// concurrent use.
type State struct {
	mu      sync.Mutex
	entries map[pkgref.Identity]pkgref.Ref
	dropped map[pkgref.Identity]struct{}
}

// New creates an empty State
func New() *State {
	return &State{
		entries: make(map[pkgref.Identity]pkgref.Ref),
		dropped: make(map[pkgref.Identity]struct{}),
	}
}

// Upsert records an observation. The flags of ref are merged into any
// existing entry with the same identity. The merged entry is returned.
func (s *State) Upsert(ref pkgref.Ref) pkgref.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsert(ref)
}

func (s *State) upsert(ref pkgref.Ref) pkgref.Ref {
	id := ref.Identity()
	if existing, ok := s.entries[id]; ok {
		existing.Binary = existing.Binary || ref.Binary
		existing.Signed = existing.Signed || ref.Signed
		ref = existing
	}
	s.entries[id] = ref
	delete(s.dropped, id)
	return ref
}

// ClearFlag clears one presence flag of the entry with the given identity.
// The entry is removed once neither flag is set. It returns false when the
// identity is not tracked.
func (s *State) ClearFlag(id pkgref.Identity, flag Flag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.entries[id]
	if !ok {
		return false
	}

	switch flag {
	case FlagBinary:
		ref.Binary = false
	case FlagSigned:
		ref.Signed = false
	}

	if !ref.Binary && !ref.Signed {
		delete(s.entries, id)
		s.dropped[id] = struct{}{}
		return true
	}
	s.entries[id] = ref
	return true
}

// Get returns the entry tracked for an identity
func (s *State) Get(id pkgref.Identity) (pkgref.Ref, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.entries[id]
	return ref, ok
}

// Len returns the number of tracked entries
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Snapshot returns all tracked entries in identity order
func (s *State) Snapshot() []pkgref.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedRefs(slices.Collect(maps.Values(s.entries)))
}

// Partition splits the tracked entries by pred without modifying the state
func (s *State) Partition(pred func(pkgref.Ref) bool) (match, rest []pkgref.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.partition(pred)
}

func (s *State) partition(pred func(pkgref.Ref) bool) (match, rest []pkgref.Ref) {
	for _, ref := range s.entries {
		if pred(ref) {
			match = append(match, ref)
		} else {
			rest = append(rest, ref)
		}
	}
	return sortedRefs(match), sortedRefs(rest)
}

// Commit removes the ready entries from the state and returns them along
// with the remaining entries and the identities dropped since the last
// commit.
func (s *State) Commit() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	ready, pending := s.partition(pkgref.Ref.Ready)
	for _, ref := range ready {
		delete(s.entries, ref.Identity())
	}

	dropped := slices.SortedFunc(maps.Keys(s.dropped), pkgref.Identity.Compare)
	clear(s.dropped)

	return Batch{
		Ready:   ready,
		Pending: pending,
		Dropped: dropped,
	}
}

// Restore puts back a batch whose commit failed, so that the next commit
// retries it.
func (s *State) Restore(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ref := range b.Ready {
		s.upsert(ref)
	}
	for _, id := range b.Dropped {
		if _, tracked := s.entries[id]; !tracked {
			s.dropped[id] = struct{}{}
		}
	}
}

// Rebuild replaces the tracked entries with the given observations. Entries
// that were tracked before but are absent from refs are marked dropped.
func (s *State) Rebuild(refs []pkgref.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.entries
	s.entries = make(map[pkgref.Identity]pkgref.Ref, len(refs))
	for _, ref := range refs {
		s.upsert(ref)
	}
	for id := range previous {
		if _, ok := s.entries[id]; !ok {
			s.dropped[id] = struct{}{}
		}
	}
}

func sortedRefs(refs []pkgref.Ref) []pkgref.Ref {
	slices.SortFunc(refs, func(a, b pkgref.Ref) int {
		return a.Identity().Compare(b.Identity())
	})
	return refs
}
