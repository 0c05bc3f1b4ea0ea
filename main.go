package main

import (
	"os"

	"github.com/pliu/hush/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
