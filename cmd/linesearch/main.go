package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
