package main

import (
	"os"

	"github.com/kfloy/apron/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
