package main

import (
	"os"
	_ "time/tzdata"

	"knowledge-test-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
