package testutil

import (
	"freelanceflow/internal/encryption"
	"freelanceflow/internal/ff"
)

// NewTestEncryptor returns a configured reversible encryptor. Any
// passphrase unlocks it until Setup is called.
func NewTestEncryptor() ff.Encryptor {
	return encryption.NewTestEncryptor()
}
