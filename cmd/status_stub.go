//go:build !linux

package cmd

import (
	"fmt"
	"runtime"
)

// RunStatus is only available on Linux.
func RunStatus(configFile string) error {
	return fmt.Errorf("status requires Linux nftables support (running on %s)", runtime.GOOS)
}
