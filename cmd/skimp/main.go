// Package main is the entry point for the skimp CLI.
package main

import (
	"os"

	"github.com/skimplabs/skimp/cmd/skimp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
