package main

import (
	"fmt"
	"os"

	"dumpkeep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dumpkeep: %v\n", err)
		os.Exit(1)
	}
}
