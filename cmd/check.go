// Package cmd implements the CLI subcommands.
package cmd

import (
	"fmt"

	"grimm.is/warden/internal/config"
)

// RunCheck validates the configuration file syntax and semantics.
func RunCheck(configFile string, verbose bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid!")
	if verbose {
		fmt.Printf("Store:          %s\n", cfg.Store.Path)
		fmt.Printf("Protected port: %d/udp\n", cfg.Service.Port)
		fmt.Printf("Table:          %s\n", cfg.Service.Table)
		fmt.Printf("Sets:           %s (ttl %s), %s (permanent)\n",
			cfg.Service.WhitelistSet, cfg.WhitelistTTL(), cfg.Service.VIPSet)
		fmt.Printf("Sync:           every %s, VIP every %d ticks\n",
			cfg.Interval(), cfg.Sync.VIPEvery)
		fmt.Printf("Quota:          %d bytes free, %.6g/byte overage\n",
			cfg.Billing.FreeQuotaBytes, cfg.Billing.PricePerByte)
		fmt.Printf("Recency:        %s\n", cfg.RecencyWindow())
	}
	return nil
}
