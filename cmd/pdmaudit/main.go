// Command pdmaudit runs the PDM quality-assessment pipeline end to
// end against one development-plan document, or verifies a proof
// already written by a prior run.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	root := &cobra.Command{
		Use:   "pdmaudit",
		Short: "Quality-assesses a municipal development plan against the canonical questionnaire",
		Long: `pdmaudit drives an eleven-phase pipeline that ingests a development-plan
document, classifies it into a PA x dimension chunk grid, routes chunks to
the executor framework, runs the Bayesian evidence and Choquet calibration
engines, aggregates scores through the Dimension -> Area -> Cluster -> Macro
cascade, and seals an HMAC-signed verification manifest.`,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newVerifyCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the pdmaudit version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pdmaudit", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
