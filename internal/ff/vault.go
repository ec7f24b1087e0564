package ff

import "io"

// Vault stores named items per host for off-machine backups. Operations
// stream through io.Reader/io.Writer.
type Vault interface {
	// PutMetadata stores a named item for a host. size is the number of
	// bytes that will be read from r. version is stored alongside it.
	// Known names: "db" (encrypted database file).
	PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named item for a host to w.
	GetMetadata(hostID string, name string, w io.Writer) error

	// GetMetadataVersion returns the stored version, or 0 if the item has
	// never been stored.
	GetMetadataVersion(hostID string, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
