package vault

import (
	"bytes"
	"strings"
	"testing"
)

func TestMemoryVault_PutAndGetMetadata(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"encrypted snapshot", "age-encryption.org/v1 ..."},
		{"empty item", ""},
		{"large item", strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault := NewMemoryVault("test-vault")

			if err := vault.PutMetadata("host-1", "db", strings.NewReader(tt.content), int64(len(tt.content)), 1); err != nil {
				t.Fatalf("PutMetadata() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetMetadata("host-1", "db", &buf); err != nil {
				t.Fatalf("GetMetadata() error = %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetMetadata() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_Versions(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	version, err := vault.GetMetadataVersion("host-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version of missing item = %d, want 0", version)
	}

	for i, data := range []string{"version 1", "version 2"} {
		if err := vault.PutMetadata("host-1", "db", strings.NewReader(data), int64(len(data)), int64(i+1)); err != nil {
			t.Fatalf("PutMetadata() error = %v", err)
		}
	}

	version, _ = vault.GetMetadataVersion("host-1", "db")
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}

	var buf bytes.Buffer
	if err := vault.GetMetadata("host-1", "db", &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != "version 2" {
		t.Errorf("GetMetadata() = %q, want latest write", buf.String())
	}
}

func TestMemoryVault_HostsAreSeparate(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	data := "laptop data"
	if err := vault.PutMetadata("laptop", "db", strings.NewReader(data), int64(len(data)), 1); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := vault.GetMetadata("desktop", "db", &buf); err == nil {
		t.Error("GetMetadata() for another host expected error")
	}
}

func TestMemoryVault_PutMetadataSizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	content := "test"
	if err := vault.PutMetadata("host-1", "db", strings.NewReader(content), int64(len(content)+10), 1); err == nil {
		t.Error("PutMetadata() expected error for size mismatch, got nil")
	}
	if version, _ := vault.GetMetadataVersion("host-1", "db"); version != 0 {
		t.Errorf("version after failed put = %d, want 0", version)
	}
}
