// Package pacman commits batches into a pacman repository database, the
// way repo-add would.
package pacman

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/reposyncd/internal/committer"
	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/pkgref"
	"github.com/ralt/reposyncd/internal/signer"
	"github.com/ralt/reposyncd/internal/state"
	"github.com/ralt/reposyncd/internal/utils"
	"github.com/sirupsen/logrus"
)

// Committer maintains a pacman database for the packages of a directory.
// Entries are keyed by package name, so a directory holds at most one
// version of each package.
type Committer struct {
	config models.RepositoryConfig
	signer signer.Signer
}

// NewCommitter creates a new pacman committer. s may be nil for an
// unsigned repository.
func NewCommitter(config models.RepositoryConfig, s signer.Signer) *Committer {
	if config.DBDir == "" {
		config.DBDir = config.PoolDir
	}
	return &Committer{
		config: config,
		signer: s,
	}
}

// DatabasePath returns the path of the compressed database
func (c *Committer) DatabasePath() string {
	name := sanitizeRepoName(c.config.RepoName) + ".db.tar"
	if c.config.Compression != models.CompressionNone {
		name += "." + string(c.config.Compression)
	}
	return filepath.Join(c.config.DBDir, name)
}

// KeyPath returns the path of the exported public key of a signed database
func (c *Committer) KeyPath() string {
	return filepath.Join(c.config.DBDir, sanitizeRepoName(c.config.RepoName)+".asc")
}

// linkPath returns the path of the plain <repo>.db copy pacman downloads
func (c *Committer) linkPath() string {
	return filepath.Join(c.config.DBDir, sanitizeRepoName(c.config.RepoName)+".db")
}

// Commit adds the ready packages of the batch to the database and removes
// its dropped identities
func (c *Committer) Commit(ctx context.Context, batch state.Batch) error {
	dbPath := c.DatabasePath()
	logrus.Infof("Updating %s: %d to add, %d to remove", dbPath, len(batch.Ready), len(batch.Dropped))

	entries, err := c.load(dbPath)
	if err != nil {
		return &models.Error{
			Type:    models.ErrCommit,
			Package: dbPath,
			Err:     fmt.Errorf("failed to read database: %w", err),
		}
	}

	changed := false
	for _, id := range batch.Dropped {
		if pkg, ok := entries[id.Name]; ok && sameIdentity(pkg, id) {
			logrus.Infof("Removing %s", id)
			delete(entries, id.Name)
			changed = true
		}
	}

	// A package that cannot be described is left out so that it does not
	// hold back the rest of the batch
	rejected := &committer.RejectedError{}
	for _, ref := range batch.Ready {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkg, err := c.describe(ref)
		if err != nil {
			logrus.Errorf("Skipping %s: %v", ref.Identity(), err)
			rejected.Refs = append(rejected.Refs, ref)
			rejected.Errs = append(rejected.Errs, &models.Error{
				Type:    models.ErrCommit,
				Package: ref.PayloadFilename(),
				Err:     err,
			})
			continue
		}

		if old, ok := entries[pkg.Name]; ok && old.Version != pkg.Version {
			logrus.Infof("Replacing %s %s with %s", pkg.Name, old.Version, pkg.Version)
		} else {
			logrus.Infof("Adding %s", ref.Identity())
		}
		entries[pkg.Name] = *pkg
		changed = true
	}

	if c.config.Prune && c.prune(entries) > 0 {
		changed = true
	}

	if !changed {
		logrus.Infof("Database %s is unchanged", filepath.Base(dbPath))
	} else {
		packages := make([]models.Package, 0, len(entries))
		for _, pkg := range entries {
			packages = append(packages, pkg)
		}

		if err := c.write(dbPath, packages); err != nil {
			return err
		}
		logrus.Infof("Database %s now holds %d packages", filepath.Base(dbPath), len(packages))
	}

	if len(rejected.Refs) > 0 {
		return rejected
	}
	return nil
}

// load reads the current database entries keyed by package name. A missing
// database is an empty one.
func (c *Committer) load(dbPath string) (map[string]models.Package, error) {
	entries := make(map[string]models.Package)
	if !utils.FileExists(dbPath) {
		return entries, nil
	}

	packages, err := readDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	for _, pkg := range packages {
		entries[pkg.Name] = pkg
	}
	logrus.Debugf("Loaded %d packages from %s", len(entries), dbPath)
	return entries, nil
}

// describe builds the database entry of a ready package from its payload
// and signature in the pool directory
func (c *Committer) describe(ref pkgref.Ref) (*models.Package, error) {
	payloadPath := filepath.Join(c.config.PoolDir, ref.PayloadFilename())
	pkg, err := ParsePackage(payloadPath)
	if err != nil {
		return nil, err
	}

	// The filename is what the daemon tracks, so it wins over .PKGINFO
	if pkg.Name != ref.Name || pkg.Version != ref.FullVersion() {
		logrus.Warnf("%s: .PKGINFO says %s %s", ref.PayloadFilename(), pkg.Name, pkg.Version)
	}
	pkg.Name = ref.Name
	pkg.Version = ref.FullVersion()
	pkg.Architecture = ref.Arch.String()
	pkg.Filename = ref.PayloadFilename()

	sig, err := os.ReadFile(filepath.Join(c.config.PoolDir, ref.SignatureFilename()))
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}
	pkg.PGPSig = base64.StdEncoding.EncodeToString(sig)

	return pkg, nil
}

// prune drops the entries whose payload is no longer in the pool directory
// and returns how many were dropped
func (c *Committer) prune(entries map[string]models.Package) int {
	pruned := 0
	for name, pkg := range entries {
		if !utils.FileExists(filepath.Join(c.config.PoolDir, pkg.Filename)) {
			logrus.Infof("Pruning %s %s: %s is gone", name, pkg.Version, pkg.Filename)
			delete(entries, name)
			pruned++
		}
	}
	return pruned
}

// write compresses, stores and optionally signs the database
func (c *Committer) write(dbPath string, packages []models.Package) error {
	tarData, err := generateDatabase(packages)
	if err != nil {
		return &models.Error{
			Type: models.ErrMetadataGen,
			Err:  fmt.Errorf("failed to generate database: %w", err),
		}
	}

	dbData, err := utils.Compress(tarData, c.config.Compression)
	if err != nil {
		return &models.Error{
			Type: models.ErrMetadataGen,
			Err:  fmt.Errorf("failed to compress database: %w", err),
		}
	}

	type output struct {
		path string
		data []byte
	}
	var outputs []output

	// The signature goes first so that a new database is never published
	// next to the previous signature
	if c.signer != nil {
		signature, err := c.signer.SignDetached(dbData)
		if err != nil {
			return &models.Error{
				Type: models.ErrSigning,
				Err:  fmt.Errorf("failed to sign database: %w", err),
			}
		}
		outputs = append(outputs, output{dbPath + ".sig", signature})
	}
	outputs = append(outputs, output{dbPath, dbData})

	for _, out := range outputs {
		link := c.linkPath() + strings.TrimPrefix(out.path, dbPath)
		for _, path := range []string{out.path, link} {
			if err := utils.WriteFileAtomic(path, out.data, 0644); err != nil {
				return &models.Error{
					Type:    models.ErrFileOp,
					Package: path,
					Err:     err,
				}
			}
		}
	}

	if c.signer != nil {
		return c.exportPublicKey()
	}
	return nil
}

// exportPublicKey writes the armored signing key next to the database so
// that clients can import it with pacman-key
func (c *Committer) exportPublicKey() error {
	key, err := c.signer.PublicKey()
	if err != nil {
		return &models.Error{
			Type: models.ErrSigning,
			Err:  fmt.Errorf("failed to export public key: %w", err),
		}
	}

	path := c.KeyPath()
	if err := utils.WriteFileAtomic(path, key, 0644); err != nil {
		return &models.Error{
			Type:    models.ErrFileOp,
			Package: path,
			Err:     err,
		}
	}
	return nil
}

// sameIdentity reports whether a database entry is the given package version
func sameIdentity(pkg models.Package, id pkgref.Identity) bool {
	ref, err := pkgref.Parse(pkg.Filename)
	if err != nil {
		return pkg.Name == id.Name && pkg.Version == id.FullVersion()
	}
	return ref.Identity() == id
}

// sanitizeRepoName sanitizes a repository name for use in filenames
func sanitizeRepoName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	// Replace any character that's not alphanumeric or hyphen
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}
