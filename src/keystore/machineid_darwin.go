//go:build darwin

package keystore

import (
	"errors"
	"os/exec"
	"strings"
)

// machineID reads IOPlatformUUID from the I/O registry.
func machineID() (string, error) {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return "", err
	}
	return parseIOPlatformUUID(string(out))
}

func parseIOPlatformUUID(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "IOPlatformUUID") {
			continue
		}
		if parts := strings.Split(line, `"`); len(parts) > 3 {
			return parts[3], nil
		}
	}
	return "", errors.New("IOPlatformUUID not found in ioreg output")
}
