//go:build linux

package cmd

import (
	"fmt"

	"github.com/google/nftables"

	"grimm.is/warden/internal/config"
	"grimm.is/warden/internal/entitle"
	"grimm.is/warden/internal/netfilter"
)

// RunStatus prints the current kernel-side state of the filter sets.
func RunStatus(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("failed to open netlink connection: %w", err)
	}

	manager := netfilter.NewManager(netfilter.NewRealConn(conn), netfilter.Options{
		Table:        cfg.Service.Table,
		WhitelistSet: cfg.Service.WhitelistSet,
		VIPSet:       cfg.Service.VIPSet,
		Port:         uint16(cfg.Service.Port),
		WhitelistTTL: cfg.WhitelistTTL(),
	}, nil)

	// Bootstrap is idempotent; it only creates objects that are missing.
	if err := manager.EnsureBootstrap(); err != nil {
		return err
	}

	standard, err := manager.CountSet(entitle.TierStandard)
	if err != nil {
		return err
	}
	vip, err := manager.CountSet(entitle.TierVIP)
	if err != nil {
		return err
	}

	fmt.Printf("Table:     %s (inet)\n", cfg.Service.Table)
	fmt.Printf("Port:      %d/udp\n", cfg.Service.Port)
	fmt.Printf("%-10s %d addresses (ttl %s)\n", cfg.Service.WhitelistSet+":", standard, cfg.WhitelistTTL())
	fmt.Printf("%-10s %d addresses (permanent)\n", cfg.Service.VIPSet+":", vip)
	return nil
}
