// Package brand provides centralized naming and default-path constants.
package brand

// Identity
const (
	Name        = "Warden"
	LowerName   = "warden"
	BinaryName  = "warden"
	Description = "Quota-aware whitelist synchronization daemon"
)

// Defaults
const (
	DefaultConfigDir = "/etc/warden"
	ConfigFileName   = "warden.hcl"
	DefaultStorePath = "/var/lib/warden/users.db"
)

// Version is set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)
