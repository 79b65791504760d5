package signer

// Signer signs repository databases
type Signer interface {
	// SignDetached creates a detached signature (the .db.tar.*.sig file)
	SignDetached(data []byte) ([]byte, error)

	// PublicKey returns the armored public key
	PublicKey() ([]byte, error)
}
