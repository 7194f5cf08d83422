// Command risklock is the terminal client for the RiskLock risk service.
package main

import (
	"fmt"
	"os"

	"risklock/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
