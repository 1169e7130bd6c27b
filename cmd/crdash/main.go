package main

import (
	"os"

	"github.com/sprite-ai/crdash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
