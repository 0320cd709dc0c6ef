package main

import (
	"os"

	"github.com/xpander-ai/xpander-cli/cmd/xpander/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
