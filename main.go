package main

import (
	"os"

	"github.com/hirelinehq/hireline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
