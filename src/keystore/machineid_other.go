//go:build !darwin && !linux && !windows

package keystore

import "os"

func machineID() (string, error) {
	return os.Hostname()
}
