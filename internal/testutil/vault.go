package testutil

import (
	"freelanceflow/internal/ff"
	"freelanceflow/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() ff.Vault {
	return vault.NewMemoryVault("test-vault")
}
