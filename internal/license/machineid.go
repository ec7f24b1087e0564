package license

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const machineIDSalt = "freelanceflow-license-v1"

// machineIDFiles are tried in order.
var machineIDFiles = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// MachineID returns a stable per-machine instance id: the salted SHA-256 of
// the OS machine id, or of fallback when no machine id file is readable.
func MachineID(fallback string) string {
	return machineIDFrom(machineIDFiles, fallback)
}

func machineIDFrom(files []string, fallback string) string {
	raw := fallback
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			raw = id
			break
		}
	}

	sum := sha256.Sum256([]byte(machineIDSalt + ":" + raw))
	return hex.EncodeToString(sum[:])
}
