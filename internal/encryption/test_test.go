package encryption

import (
	"bytes"
	"testing"
)

func TestTestEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewTestEncryptor()

			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if !bytes.HasPrefix(encrypted.Bytes(), testHeader) {
				t.Errorf("encrypted output lacks test header: %q", encrypted.Bytes())
			}

			ctx, err := e.Unlock("anything")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var decrypted bytes.Buffer
			if err := ctx.Decrypt(&encrypted, &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip = %q, want %q", decrypted.Bytes(), tt.input)
			}
		})
	}
}

func TestTestEncryptor_Unlock(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
	if err := e.Setup("right"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong"); err == nil {
		t.Error("Unlock() with wrong passphrase should fail after Setup")
	}
	if _, err := e.Unlock("right"); err != nil {
		t.Errorf("Unlock() with right passphrase error = %v", err)
	}
}

func TestTestDecryptionContext_RejectsForeignData(t *testing.T) {
	t.Parallel()

	ctx := &TestDecryptionContext{}
	for name, data := range map[string][]byte{
		"short":      []byte("FF"),
		"bad header": []byte("NOTENC\x00\x00payload"),
	} {
		var out bytes.Buffer
		if err := ctx.Decrypt(bytes.NewReader(data), &out); err == nil {
			t.Errorf("%s: Decrypt() expected error", name)
		}
	}
}
