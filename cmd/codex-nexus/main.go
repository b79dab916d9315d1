package main

import (
	"os"

	"github.com/pysugar/codex-nexus/cmd/codex-nexus/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
