package main

import (
	"os"

	"odinbots/cmd/odinbots/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
