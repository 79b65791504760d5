package cli

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ulikunitz/xz"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writePackage creates a minimal xz package payload with a .PKGINFO, and
// its signature
func writePackage(t *testing.T, dir, name, version, arch string) {
	t.Helper()

	pkginfo := fmt.Sprintf("pkgname = %s\npkgver = %s\narch = %s\npkgdesc = %s test package\n", name, version, arch, name)
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	if err := tw.WriteHeader(&tar.Header{Name: ".PKGINFO", Mode: 0644, Size: int64(len(pkginfo)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(pkginfo)); err != nil {
		t.Fatal(err)
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

	payload := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.pkg.tar.xz", name, version, arch))
	if err := os.WriteFile(payload, xzBuf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(payload+".sig", []byte("signature"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseCmd(t *testing.T) {
	out, err := execute(t, "parse",
		"/srv/repo/docker-1:1.3.1-1-x86_64.pkg.tar.xz.sig",
		"lnav-0.5.1-1-any.pkg.tar.xz",
	)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	for _, want := range []string{
		"name=docker epoch=1 version=1.3.1 rel=1 arch=x86_64 artifact=signature",
		"name=lnav epoch=0 version=0.5.1 rel=1 arch=any artifact=binary",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseCmdRejects(t *testing.T) {
	out, err := execute(t, "parse", "lnav-0.5.1-1-x86_64.pkg.tar.xz", "README.md")
	if !errors.Is(err, &models.Error{Type: models.ErrPackageParse}) {
		t.Errorf("expected a parse error, got %v", err)
	}
	if !strings.Contains(out, "name=lnav") {
		t.Errorf("valid filenames should still be printed:\n%s", out)
	}
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := execute(t, "--log-format", "xml", "parse", "lnav-0.5.1-1-x86_64.pkg.tar.xz")
	if !errors.Is(err, &models.Error{Type: models.ErrInvalidConfig}) {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestSyncCmd(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "lnav", "0.5.1-1", "x86_64")
	writePackage(t, dir, "docker", "1:1.3.1-1", "x86_64")
	if err := os.Remove(filepath.Join(dir, "docker-1:1.3.1-1-x86_64.pkg.tar.xz.sig")); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "sync", "--dir", dir, "--repo-name", "test", "--compression", "gz"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	for _, name := range []string{"test.db.tar.gz", "test.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should have been written: %v", name, err)
		}
	}
}

func TestSyncCmdWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbDir := t.TempDir()
	writePackage(t, dir, "lnav", "0.5.1-1", "x86_64")

	path := filepath.Join(t.TempDir(), "reposyncd.yaml")
	config := fmt.Sprintf("watch:\n  dir: %s\ncommit:\n  repo_name: siosm-aur\n  db_dir: %s\n", dir, dbDir)
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "sync", "--config", path, "--compression", "xz"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dbDir, "siosm-aur.db.tar.xz")); err != nil {
		t.Errorf("database should be written to db_dir with the flag's compression: %v", err)
	}
}

func TestSyncCmdLogMode(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, "lnav", "0.5.1-1", "x86_64")

	if _, err := execute(t, "sync", "--dir", dir, "--mode", "log"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("log mode should not write anything, found %d files", len(entries))
	}
}

func TestSyncCmdInvalidConfig(t *testing.T) {
	_, err := execute(t, "sync", "--dir", filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, &models.Error{Type: models.ErrInvalidConfig}) {
		t.Errorf("expected a config error, got %v", err)
	}

	_, err = execute(t, "sync", "--dir", t.TempDir(), "--gpg-key", filepath.Join(t.TempDir(), "missing.asc"))
	if !errors.Is(err, &models.Error{Type: models.ErrSigning}) {
		t.Errorf("expected a signing error, got %v", err)
	}
}

func TestWatchCmdUnknownBackend(t *testing.T) {
	_, err := execute(t, "watch", "--dir", t.TempDir(), "--backend", "kqueue")
	if !errors.Is(err, &models.Error{Type: models.ErrInvalidConfig}) {
		t.Errorf("expected a config error, got %v", err)
	}
}
