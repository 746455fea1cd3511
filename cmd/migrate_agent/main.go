// Package main provides the entry point for the COBOL migration agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "migrate_agent",
	Short: "COBOL to Java migration pipeline",
	Long:  "migrate_agent scans a COBOL repository, translates each compilation unit to Java, synthesizes behavioral tests and validates the result, either as a one-shot CLI run or as a REST API server.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
