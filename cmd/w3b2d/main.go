package main

import (
	"os"

	"github.com/w3b2/w3b2-solana-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
