// Package main is the entry point for tap-paypal.
package main

import (
	"os"

	"github.com/donaldgifford/tap-paypal/cmd/tap-paypal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
