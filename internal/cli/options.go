package cli

import (
	"fmt"

	"github.com/ralt/reposyncd/internal/committer"
	"github.com/ralt/reposyncd/internal/committer/pacman"
	"github.com/ralt/reposyncd/internal/config"
	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/signer"
	"github.com/ralt/reposyncd/internal/state"
	"github.com/ralt/reposyncd/internal/syncer"
	"github.com/ralt/reposyncd/internal/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// options holds the command line overrides of the configuration file
type options struct {
	dir         string
	backend     string
	sentinel    string
	workers     int
	rescan      bool
	mode        string
	repoName    string
	dbDir       string
	compression string
	prune       bool
	gpgKey      string
	gpgPass     string
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	// Watch flags
	flags.StringVarP(&o.dir, "dir", "d", "", "Directory to watch (default \".\")")
	flags.StringVar(&o.backend, "backend", "", "Watch backend (inotify, fsnotify)")
	flags.StringVar(&o.sentinel, "sentinel", "", "Filename that triggers a commit (default \"DONE\")")
	flags.IntVarP(&o.workers, "workers", "j", 0, "Number of events parsed concurrently (default number of CPUs)")
	flags.BoolVar(&o.rescan, "rescan", true, "Scan the directory for existing packages on startup")

	// Commit flags
	flags.StringVar(&o.mode, "mode", "", "Commit mode (pacman, log)")
	flags.StringVarP(&o.repoName, "repo-name", "r", "", "Repository name (default directory name)")
	flags.StringVar(&o.dbDir, "db-dir", "", "Directory for the database (default watched directory)")
	flags.StringVar(&o.compression, "compression", "", "Database compression (zst, xz, gz)")
	flags.BoolVar(&o.prune, "prune", false, "Remove database entries whose payload is gone")

	// GPG signing flags
	flags.StringVarP(&o.gpgKey, "gpg-key", "k", "", "Path to GPG private key used to sign the database")
	flags.StringVarP(&o.gpgPass, "gpg-passphrase", "p", "", "GPG key passphrase")
}

// load reads the configuration file, applies the flags that were set and
// validates the result
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("dir", func() { cfg.Watch.Dir = o.dir })
	set("backend", func() { cfg.Watch.Backend = watcher.Backend(o.backend) })
	set("sentinel", func() { cfg.Watch.Sentinel = o.sentinel })
	set("workers", func() { cfg.Watch.Workers = o.workers })
	set("rescan", func() { cfg.Watch.Rescan = &o.rescan })
	set("mode", func() { cfg.Commit.Mode = o.mode })
	set("repo-name", func() { cfg.Commit.RepoName = o.repoName })
	set("db-dir", func() { cfg.Commit.DBDir = o.dbDir })
	set("compression", func() { cfg.Commit.Compression = models.Compression(o.compression) })
	set("prune", func() { cfg.Commit.Prune = o.prune })
	set("gpg-key", func() { cfg.Commit.GPGKeyPath = o.gpgKey })
	set("gpg-passphrase", func() { cfg.Commit.GPGPassphrase = o.gpgPass })

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.Debugf("Configuration: %+v", cfg.Watch)
	return cfg, nil
}

// newSyncer builds the syncer and its committer from the configuration
func newSyncer(cfg *config.Config) (*syncer.Syncer, error) {
	c, err := newCommitter(cfg)
	if err != nil {
		return nil, err
	}

	return syncer.New(syncer.Config{
		Dir:      cfg.Watch.Dir,
		Sentinel: cfg.Watch.Sentinel,
		Workers:  cfg.Watch.Workers,
		Rescan:   *cfg.Watch.Rescan,
	}, state.New(), c), nil
}

func newCommitter(cfg *config.Config) (committer.Committer, error) {
	if cfg.Commit.Mode == config.ModeLog {
		return committer.Log{}, nil
	}

	var s signer.Signer
	if cfg.Commit.GPGKeyPath != "" {
		gpgSigner, err := signer.NewGPGSigner(cfg.Commit.GPGKeyPath, cfg.Commit.GPGPassphrase)
		if err != nil {
			return nil, &models.Error{
				Type: models.ErrSigning,
				Err:  fmt.Errorf("failed to initialize GPG signer: %w", err),
			}
		}
		logrus.Info("GPG signer initialized")
		s = gpgSigner
	}

	c := pacman.NewCommitter(cfg.Commit.RepositoryConfig, s)
	logrus.Infof("Committing to %s", c.DatabasePath())
	return c, nil
}
