// Package main is the entry point for tapctl, the tap-paypal service client.
package main

import (
	"os"

	"github.com/donaldgifford/tap-paypal/cmd/tapctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
