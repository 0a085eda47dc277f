// Command disparos summarizes dispatch exports and appends the summary to the
// control sheet.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
