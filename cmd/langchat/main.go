// Package main is the langchat CLI entry point.
//
// Usage:
//
//	langchat [--config path] [--debug] <command> [args]
//
// Commands:
//
//	serve       - HTTP API with the knowledge directory watcher
//	similarity  - Compare two texts
//	rank        - Rank candidate texts against a query
//	index       - Index files, directories or inline text
//	ask         - Answer one question from the indexed documents
//	chat        - Interactive chat with memory
//	config      - Show or write the effective configuration
//	version     - Show version information
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
