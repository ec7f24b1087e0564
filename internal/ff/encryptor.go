package ff

import "io"

// Encryptor encrypts backups with a public key and unlocks the matching
// private key with a passphrase for restores.
type Encryptor interface {
	// Setup generates a key pair once, storing the private key encrypted
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w. No
	// passphrase is needed.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails on a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for one
// restore. The key is never written to disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
