package pacman

import (
	"archive/tar"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/reposyncd/internal/pkgref"
	"github.com/ulikunitz/xz"
)

// writeArtifacts creates an xz payload with a .PKGINFO and a fake detached
// signature for ref in dir
func writeArtifacts(t *testing.T, dir string, ref pkgref.Ref) {
	t.Helper()

	pkginfo := fmt.Sprintf(`# Generated by makepkg
pkgname = %s
pkgbase = %s
pkgver = %s
pkgdesc = Test package %s
url = https://example.com/%s
builddate = 1416000000
packager = Test Packager <test@example.com>
size = 4096
arch = %s
license = MIT
license = BSD
depend = glibc
depend = ncurses>=6
provides = %s-bin
`, ref.Name, ref.Name, ref.FullVersion(), ref.Name, ref.Name, ref.Arch, ref.Name)

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	files := []struct {
		name string
		body string
	}{
		{".PKGINFO", pkginfo},
		{"usr/bin/" + ref.Name, "#!/bin/sh\necho hello\n"},
	}
	for _, f := range files {
		if err := tw.WriteHeader(&tar.Header{Name: f.name, Mode: 0644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := xw.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, ref.PayloadFilename()), xzBuf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ref.SignatureFilename()), []byte("signature of "+ref.Name), 0644); err != nil {
		t.Fatal(err)
	}
}

func mustParse(t *testing.T, filename string) pkgref.Ref {
	t.Helper()
	ref, err := pkgref.Parse(filename)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", filename, err)
	}
	return ref
}

// ready returns the merged, ready reference of a payload filename
func ready(t *testing.T, filename string) pkgref.Ref {
	t.Helper()
	ref := mustParse(t, filename)
	ref.Binary, ref.Signed = true, true
	return ref
}
