// Package main provides the entry point for the assetsync CLI tool.
package main

import "github.com/stenbroen/assetsync/cmd/assetsync/cmd"

// Version information populated by the build system.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
