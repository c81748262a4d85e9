// Kestrel - Loan status lookups with explainable decisions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Command kestrelctl is the operator CLI for Kestrel: one-off lookups,
// artifact validation, seeding the customer store and load testing.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
