package ff

import (
	"bytes"
	"fmt"
)

// BackupItem is the vault item name under which database backups are kept.
const BackupItem = "db"

// Backups pushes encrypted copies of the database file to a vault and
// restores them. Encryption needs only the public key; restoring needs the
// passphrase for the private key.
type Backups struct {
	store     SnapshotStore
	vault     Vault
	encryptor Encryptor
	hostID    string
	logger    Logger
}

func NewBackups(store SnapshotStore, vault Vault, encryptor Encryptor, hostID string, logger Logger) *Backups {
	return &Backups{
		store:     store,
		vault:     vault,
		encryptor: encryptor,
		hostID:    hostID,
		logger:    logger,
	}
}

// Push exports the database, encrypts it and stores it in the vault as the
// next version. It returns the version written.
func (b *Backups) Push() (int64, error) {
	var plain bytes.Buffer
	if _, err := b.store.ExportRaw(&plain); err != nil {
		return 0, fmt.Errorf("exporting database: %w", err)
	}

	var sealed bytes.Buffer
	if err := b.encryptor.Encrypt(&plain, &sealed); err != nil {
		return 0, fmt.Errorf("encrypting database: %w", err)
	}

	prev, err := b.vault.GetMetadataVersion(b.hostID, BackupItem)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}
	version := prev + 1

	size := int64(sealed.Len())
	if err := b.vault.PutMetadata(b.hostID, BackupItem, &sealed, size, version); err != nil {
		return 0, fmt.Errorf("uploading backup: %w", err)
	}

	b.logger.Info("backup pushed", "host", b.hostID, "version", version, "bytes", size)
	return version, nil
}

// Restore fetches the latest backup, decrypts it and overwrites the local
// database file with it. The new contents are seen on the next open. It
// returns the version restored.
func (b *Backups) Restore(passphrase string) (int64, error) {
	version, err := b.vault.GetMetadataVersion(b.hostID, BackupItem)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("no backup stored for host %s", b.hostID)
	}

	dctx, err := b.encryptor.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	var sealed bytes.Buffer
	if err := b.vault.GetMetadata(b.hostID, BackupItem, &sealed); err != nil {
		return 0, fmt.Errorf("downloading backup: %w", err)
	}

	var plain bytes.Buffer
	if err := dctx.Decrypt(&sealed, &plain); err != nil {
		return 0, fmt.Errorf("decrypting backup: %w", err)
	}

	if err := b.store.ImportRaw(&plain); err != nil {
		return 0, fmt.Errorf("importing backup: %w", err)
	}

	b.logger.Info("backup restored", "host", b.hostID, "version", version)
	return version, nil
}
