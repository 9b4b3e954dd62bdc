// Package main is the entry point for listing-aggregator.
package main

import (
	"os"

	"github.com/donaldgifford/listing-aggregator/cmd/listing-aggregator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
