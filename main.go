package main

import (
	"os"

	"github.com/GenivalfSilva/Sistema-Compras/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
