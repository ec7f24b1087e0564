package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"freelanceflow/internal/ff"
)

type memoryItem struct {
	data    []byte
	version int64
}

// MemoryVault keeps items in memory. Useful for tests and the "memory"
// vault type. Safe for concurrent use.
type MemoryVault struct {
	name  string
	mu    sync.RWMutex
	items map[string]memoryItem // "hostID/name" -> item
}

func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:  name,
		items: make(map[string]memoryItem),
	}
}

func itemKey(hostID, name string) string {
	return hostID + "/" + name
}

func (m *MemoryVault) PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[itemKey(hostID, name)] = memoryItem{data: data, version: version}
	return nil
}

func (m *MemoryVault) GetMetadataVersion(hostID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[itemKey(hostID, name)].version, nil
}

func (m *MemoryVault) GetMetadata(hostID string, name string, w io.Writer) error {
	m.mu.RLock()
	item, ok := m.items[itemKey(hostID, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%q not found for host %s in vault %s", name, hostID, m.name)
	}

	if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ ff.Vault = (*MemoryVault)(nil)
