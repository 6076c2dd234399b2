package main

import (
	"os"

	"github.com/printmill/printmill/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
