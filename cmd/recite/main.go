package main

import (
	"os"

	"github.com/phrazzld/recite/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
