// Package main provides the QueryDesk CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/querydesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
