package main

import (
	"os"

	"github.com/tillberg/autorestart"

	"github.com/lunasherpa/luna/internal/cli"
)

func main() {
	// Restart on rebuild during development.
	if os.Getenv("LUNA_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
