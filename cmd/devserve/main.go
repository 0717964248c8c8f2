// Package main is the entry point for the devserve CLI.
//
// All functionality lives in internal/cli. Build-time variables are
// injected via ldflags:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)"
package main

import (
	"github.com/mmr-tortoise/devserve/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
