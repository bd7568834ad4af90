package main

import (
	"fmt"

	"github.com/pdmcolombia/pdmaudit/pkg/manifest"
	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	var artifactsDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-hash a persisted proof and confirm its HMAC still checks out",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.ReadProofFromDir(artifactsDir)
			if err != nil {
				return fmt.Errorf("reading proof from %s: %w", artifactsDir, err)
			}
			if err := manifest.Verify(m, hmacKey()); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			fmt.Println("PIPELINE_VERIFIED=1")
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "./artifacts", "directory containing proof.json/proof.hash")
	return cmd
}
