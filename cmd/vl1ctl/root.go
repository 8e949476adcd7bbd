// Package vl1ctl is the vl1ctl CLI: small offline helpers around the core
// dispatch module (identity generation, proof-of-work, packet decoding),
// built with cobra in the same command-per-file style as the teacher's
// cmd/root.go.
package vl1ctl

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vl1ctl",
	Short: "VL1 offline toolbox",
	Long:  `vl1ctl offers offline helpers around the VL1 dispatch core: identity generation, proof-of-work, and packet inspection.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: "identity", Title: "Identity"})
	rootCmd.AddGroup(&cobra.Group{ID: "pow", Title: "Proof of Work"})
	rootCmd.AddGroup(&cobra.Group{ID: "inspect", Title: "Inspection"})
}
