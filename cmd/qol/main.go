package main

import (
	"os"

	"github.com/wonny/qolindex/cmd/qol/commands"
)

// main is the entry point of the qol CLI
// ⭐ single CLI entry point: go run ./cmd/qol [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
