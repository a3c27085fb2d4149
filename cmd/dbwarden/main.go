// Package main provides the entry point for dbwarden.
//
// dbwarden stores hierarchical warning and critical thresholds for database
// storage checks, resolves the configuration that applies at any instance,
// database or file, and classifies live metric samples against it.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Version information set during build time
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// main is the entry point of dbwarden.
//
// The startup sequence is as follows:
//  1. Parse the command line
//  2. Load configuration
//  3. Initialize logger
//  4. Run the selected command
func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
