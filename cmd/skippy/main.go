// Package main is Skippy's CLI entrypoint: cobra command tree plus
// process exit-code mapping, grounded on cmd/copilot/main.go's
// rootCmd.Execute()/os.Exit shape.
package main

import (
	"fmt"
	"os"

	"github.com/UnfinishedBusiness/skippy/cmd/skippy/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
