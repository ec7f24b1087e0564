package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"freelanceflow/internal/ff"
)

// FileSystemVault stores items as files under root, for example on a
// mounted backup drive:
//
//	<root>/
//	  <hostID>/
//	    <name>          (item bytes)
//	    <name>.version  (decimal version)
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates root if needed.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) itemPath(hostID, name string) (string, error) {
	for _, part := range []string{hostID, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid vault path component %q", part)
		}
	}
	return filepath.Join(v.root, hostID, name), nil
}

// PutMetadata writes the item and then its version, each atomically. A
// reader racing a write sees either the old or the new item bytes.
func (v *FileSystemVault) PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error {
	path, err := v.itemPath(hostID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create host directory: %w", err)
	}

	if err := writeFileAtomic(path, r, size); err != nil {
		return err
	}
	versionData := strconv.FormatInt(version, 10)
	return writeFileAtomic(path+".version", strings.NewReader(versionData), int64(len(versionData)))
}

// GetMetadataVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetMetadataVersion(hostID string, name string) (int64, error) {
	path, err := v.itemPath(hostID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path + ".version")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

func (v *FileSystemVault) GetMetadata(hostID string, name string, w io.Writer) error {
	path, err := v.itemPath(hostID, name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%q not found for host %s in vault %s", name, hostID, v.name)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// ValidateSetup checks that root is a writable directory.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFileAtomic writes r to destPath through a temp file in the same
// directory and a rename.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ ff.Vault = (*FileSystemVault)(nil)
