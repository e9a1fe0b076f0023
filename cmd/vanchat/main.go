// vanchat - Terminal client for virtual-agent chat backends
// License: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vanchat/vanchat/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "vanchat"

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func getConfigPath() string {
	if p := os.Getenv("VANCHAT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vanchat", "config.json")
	}
	return filepath.Join(home, ".vanchat", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
