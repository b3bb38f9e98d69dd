package main

import (
	"os"

	"github.com/Simplici0/renoprice/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
