package main

import (
	"os"

	"github.com/janosik-trading/janosik/cmd/janosik/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
