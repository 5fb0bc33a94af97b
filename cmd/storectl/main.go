// Command storectl runs read-only database diagnostics and maintenance
// tasks against the storefront database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "storectl",
	Short: "KCT storefront diagnostics and maintenance",
	Long: `storectl inspects the storefront database and runs maintenance tasks.

Checks are read-only and print a report to stdout. A failed command prints
the error and exits with status 1.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		checkTablesCmd,
		checkSubcategoriesCmd,
		checkCustomerTableCmd,
		checkVariantStructureCmd,
		checkOrdersStructureCmd,
		checkSizesCmd,
		exportProductsCmd,
		setupStorageCmd,
		watchConfigCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// diagnostics.Run already printed failures from the commands themselves
		if !reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
