package main

import (
	"os"

	"steemauth/cmd/steemauth/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
