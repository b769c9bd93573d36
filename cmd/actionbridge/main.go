// Package main provides the entry point for the actionbridge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Jason-Cooke/nylas-mail/cmd/actionbridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
