//go:build !linux

package cmd

import (
	"fmt"
	"runtime"
)

// RunStart is only available on Linux, where the kernel filter lives.
func RunStart(configFile string) error {
	return fmt.Errorf("the sync daemon requires Linux nftables support (running on %s)", runtime.GOOS)
}
