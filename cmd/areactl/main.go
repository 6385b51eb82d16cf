package main

import (
	"os"

	"area-bot/cmd/areactl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
