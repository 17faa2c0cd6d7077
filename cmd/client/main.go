package main

import (
	"os"

	"github.com/dtroode/srplogin/cmd/client/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
