// Command extractor pulls places of worship from OpenStreetMap and prepares
// the collections the map and the importer read.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"worship/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "extractor",
	Short: "Extract places of worship from OpenStreetMap",
	Long:  "Queries the Overpass API per country, converts elements to places and writes GeoJSON collections locally or to object storage.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		env.LoadEnv()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
