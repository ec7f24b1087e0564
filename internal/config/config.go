package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultLicenseEndpoint is where the license proxy listens when run locally.
const DefaultLicenseEndpoint = "http://localhost:8080/api/activate"

const defaultLicenseTimeout = 15 * time.Second

// Config represents the main configuration for freelanceflow.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	License    LicenseConfig    `toml:"license"`
	Encryption EncryptionConfig `toml:"encryption"`
	Vaults     []VaultConfig    `toml:"vaults"`
}

// DatabaseConfig represents configuration for the data store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type       string `toml:"type"`                  // "sqlite" or "memory"
	DataDir    string `toml:"data_dir,omitempty"`    // only used for type=sqlite
	LegacyPath string `toml:"legacy_path,omitempty"` // old JSON snapshot, imported once if present
}

// LicenseConfig points at the activation service. The bearer token is never
// stored here; it is read from the FF_LICENSE_API_KEY environment variable.
type LicenseConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout, falling back to 15 seconds when unset.
func (c LicenseConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultLicenseTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EncryptionConfig holds paths to the age key pair used for encrypting backups.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for a backup vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig creates a Config rooted at baseDir with a SQLite store, the
// legacy snapshot expected next to it, and default key paths.
func NewConfig(hostID, baseDir string) *Config {
	dataDir := filepath.Join(baseDir, "data")
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:       "sqlite",
			DataDir:    dataDir,
			LegacyPath: filepath.Join(dataDir, "freelanceflow-data.json"),
		},
		License: LicenseConfig{
			Endpoint:       DefaultLicenseEndpoint,
			TimeoutSeconds: int(defaultLicenseTimeout / time.Second),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "ff.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "ff.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
