package models

// Compression names the codec used for the repository database
type Compression string

const (
	CompressionZstd Compression = "zst"
	CompressionXz   Compression = "xz"
	CompressionGzip Compression = "gz"
	CompressionNone Compression = ""
)

// RepositoryConfig contains the settings of the repository database the
// daemon commits to
type RepositoryConfig struct {
	// PoolDir is where package payloads and signatures live (the watched directory)
	PoolDir string `yaml:"-"`

	// DBDir is where the database is written, defaults to PoolDir
	DBDir string `yaml:"db_dir"`

	// RepoName is the database name, e.g. "siosm-aur" for siosm-aur.db.tar.zst
	RepoName string `yaml:"repo_name"`

	// Compression of the database tarball
	Compression Compression `yaml:"compression"`

	// Prune drops database entries whose payload is gone from PoolDir
	Prune bool `yaml:"prune"`

	// Signing
	GPGKeyPath    string `yaml:"gpg_key"`
	GPGPassphrase string `yaml:"gpg_passphrase"`
}
