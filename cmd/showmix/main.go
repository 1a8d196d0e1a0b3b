// Package main provides the showmix CLI tool.
//
// Usage:
//
//	showmix [flags] <command> [args]
//
// Commands:
//
//	generate - Assemble a full show from a script file
//	speakers - List configured speaker profiles
//	jingles  - List the jingle catalog
//	tiers    - List the quality tier catalog
//
// Configuration:
//
//	Catalogs are read from a yaml file (--catalog); audio assets and
//	finished shows live in a storage root (--store). The synthesis
//	provider key comes from $SHOWMIX_API_KEY.
package main

import (
	"fmt"
	"os"

	"github.com/airloom/showmix/cmd/showmix/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
