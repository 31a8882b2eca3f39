package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/warden/cmd"
	"grimm.is/warden/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	defaultConfig := brand.DefaultConfigDir + "/" + brand.ConfigFileName

	switch os.Args[1] {
	case "start":
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		configFile := startFlags.String("config", defaultConfig, "Configuration file")
		startFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		startFlags.Parse(os.Args[2:])

		if err := cmd.RunStart(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Start failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Print the effective configuration")
		checkFlags.BoolVar(verbose, "v", false, "Verbose (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := defaultConfig
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(configFile, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		configFile := statusFlags.String("config", defaultConfig, "Configuration file")
		statusFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		statusFlags.Parse(os.Args[2:])

		if err := cmd.RunStatus(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s (built %s)\n", brand.Name, brand.Version, brand.BuildTime)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  start     Run the sync daemon in the foreground
            Options: --config (-c) <file>
  check     Validate a configuration file
            Options: --verbose (-v)
  status    Show kernel filter set state
            Options: --config (-c) <file>
  version   Print version information

Examples:
  %s start -c /etc/warden/warden.hcl
  %s check -v /etc/warden/warden.hcl
  %s status
`,
		brand.Name, brand.Description,
		brand.LowerName,
		brand.LowerName, brand.LowerName, brand.LowerName)
}
