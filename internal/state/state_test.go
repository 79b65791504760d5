package state

import (
	"sync"
	"testing"

	"github.com/ralt/reposyncd/internal/pkgref"
)

func mustParse(t *testing.T, filename string) pkgref.Ref {
	t.Helper()
	ref, err := pkgref.Parse(filename)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", filename, err)
	}
	return ref
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := New()
	ref := mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz")

	s.Upsert(ref)
	s.Upsert(ref)

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
	got, _ := s.Get(ref.Identity())
	if !got.Binary || got.Signed {
		t.Errorf("unexpected flags: %+v", got)
	}
}

func TestUpsertMergesFlags(t *testing.T) {
	s := New()
	s.Upsert(mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz"))
	merged := s.Upsert(mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz.sig"))

	if s.Len() != 1 {
		t.Fatalf("payload and signature should merge into 1 entry, got %d", s.Len())
	}
	if !merged.Ready() {
		t.Errorf("merged entry should be ready: %+v", merged)
	}
}

func TestUpsertKeepsDistinctIdentities(t *testing.T) {
	s := New()
	s.Upsert(mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz"))
	s.Upsert(mustParse(t, "lnav-0.5.1-2-x86_64.pkg.tar.xz"))
	s.Upsert(mustParse(t, "lnav-0.5.1-1-i686.pkg.tar.xz"))
	s.Upsert(mustParse(t, "lnav-1:0.5.1-1-x86_64.pkg.tar.xz"))

	if s.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", s.Len())
	}
}

func TestClearFlag(t *testing.T) {
	s := New()
	payload := mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz")
	s.Upsert(payload)
	s.Upsert(mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz.sig"))

	if !s.ClearFlag(payload.Identity(), FlagSigned) {
		t.Fatal("ClearFlag should find the entry")
	}
	got, ok := s.Get(payload.Identity())
	if !ok || !got.Binary || got.Signed {
		t.Fatalf("only the signature flag should be cleared: %+v", got)
	}

	s.ClearFlag(payload.Identity(), FlagBinary)
	if _, ok := s.Get(payload.Identity()); ok {
		t.Error("entry should be removed once both flags are cleared")
	}

	b := s.Commit()
	if len(b.Dropped) != 1 || b.Dropped[0] != payload.Identity() {
		t.Errorf("expected the identity to be reported as dropped, got %v", b.Dropped)
	}
	if b = s.Commit(); len(b.Dropped) != 0 {
		t.Errorf("dropped identities should be handed over once, got %v", b.Dropped)
	}
}

func TestClearFlagAbsentIsNoop(t *testing.T) {
	s := New()
	s.Upsert(mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz"))

	absent := mustParse(t, "docker-1:1.3.1-1-x86_64.pkg.tar.xz")
	if s.ClearFlag(absent.Identity(), FlagBinary) {
		t.Error("ClearFlag on an absent identity should report false")
	}
	if s.Len() != 1 {
		t.Errorf("state should be unchanged, got %d entries", s.Len())
	}
	if b := s.Commit(); len(b.Dropped) != 0 {
		t.Errorf("absent identity should not be reported as dropped: %v", b.Dropped)
	}
}

func TestReAddAfterDropIsNotDropped(t *testing.T) {
	s := New()
	ref := mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz")
	s.Upsert(ref)
	s.ClearFlag(ref.Identity(), FlagBinary)
	s.Upsert(ref)

	if b := s.Commit(); len(b.Dropped) != 0 {
		t.Errorf("re-added identity should not be dropped: %v", b.Dropped)
	}
}

func TestCommitPartition(t *testing.T) {
	s := New()
	a := mustParse(t, "a-1.0-1-any.pkg.tar.xz")
	s.Upsert(a)
	s.Upsert(mustParse(t, "b-1.0-1-any.pkg.tar.xz"))
	s.Upsert(mustParse(t, "b-1.0-1-any.pkg.tar.xz.sig"))
	c := mustParse(t, "c-1.0-1-any.pkg.tar.xz.sig")
	s.Upsert(c)

	b := s.Commit()
	if len(b.Ready) != 1 || b.Ready[0].Name != "b" {
		t.Fatalf("expected ready set {b}, got %v", b.Ready)
	}
	if len(b.Pending) != 2 || b.Pending[0] != a || b.Pending[1] != c {
		t.Errorf("expected pending {a, c}, got %v", b.Pending)
	}

	snapshot := s.Snapshot()
	if len(snapshot) != 2 || snapshot[0] != a || snapshot[1] != c {
		t.Errorf("a and c should remain tracked, got %v", snapshot)
	}
}

func TestPartitionDoesNotMutate(t *testing.T) {
	s := New()
	s.Upsert(mustParse(t, "a-1.0-1-any.pkg.tar.xz"))
	s.Upsert(mustParse(t, "b-1.0-1-any.pkg.tar.xz.sig"))

	signed, unsigned := s.Partition(func(r pkgref.Ref) bool { return r.Signed })
	if len(signed) != 1 || len(unsigned) != 1 {
		t.Fatalf("unexpected partition: %v / %v", signed, unsigned)
	}
	if s.Len() != 2 {
		t.Errorf("Partition should not remove entries, got %d", s.Len())
	}
}

func TestRestore(t *testing.T) {
	s := New()
	s.Upsert(mustParse(t, "b-1.0-1-any.pkg.tar.xz"))
	s.Upsert(mustParse(t, "b-1.0-1-any.pkg.tar.xz.sig"))
	gone := mustParse(t, "gone-1.0-1-any.pkg.tar.xz")
	s.Upsert(gone)
	s.ClearFlag(gone.Identity(), FlagBinary)

	b := s.Commit()
	if s.Len() != 0 {
		t.Fatalf("state should be empty after commit, got %d", s.Len())
	}

	s.Restore(b)
	again := s.Commit()
	if len(again.Ready) != 1 || len(again.Dropped) != 1 {
		t.Errorf("restored batch should be committed again, got %+v", again)
	}
}

func TestRebuild(t *testing.T) {
	s := New()
	stale := mustParse(t, "stale-1.0-1-any.pkg.tar.xz")
	s.Upsert(stale)

	s.Rebuild([]pkgref.Ref{
		mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz"),
		mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz.sig"),
	})

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after rebuild, got %d", s.Len())
	}
	b := s.Commit()
	if len(b.Ready) != 1 {
		t.Errorf("rebuilt entry should be ready, got %v", b.Ready)
	}
	if len(b.Dropped) != 1 || b.Dropped[0] != stale.Identity() {
		t.Errorf("stale entry should be dropped, got %v", b.Dropped)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	s := New()
	payload := mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz")
	signature := mustParse(t, "lnav-0.5.1-1-x86_64.pkg.tar.xz.sig")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.Upsert(payload) }()
		go func() { defer wg.Done(); s.Upsert(signature) }()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", s.Len())
	}
	if got, _ := s.Get(payload.Identity()); !got.Ready() {
		t.Errorf("entry should be ready: %+v", got)
	}
}
