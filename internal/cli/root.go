package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const asciiLogo = `                                _
 _ __   __ _ _ __ ___  __ _  __| |_   _
| '_ \ / _' | '__/ _ \/ _' |/ _' | | | |
| |_) | (_| | | |  __/ (_| | (_| | |_| |
| .__/ \__, |_|  \___|\__,_|\__,_|\__, |
|_|    |___/                      |___/`

var rootCmd = &cobra.Command{
	Use:   "pgready",
	Short: "PostgreSQL startup readiness checks",
	Long: asciiLogo + `

pgready validates the application environment and DATABASE_URL, then proves the
database is reachable before the application starts. Transient failures are
retried with exponential backoff; authentication and configuration failures
fail fast with an actionable message.

Run it from a deployment script right before the application process:

  pgready check --production && exec ./server

Exit Codes:
  0  - Success (environment valid and database reachable)
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or environment
  11 - Database connection failed
  12 - Startup checks failed for more than one reason`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for pgready")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
