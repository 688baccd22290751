package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semillacaramelo/ftba/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults, and report every
problem found.

Examples:
  ftba validate -f ftba.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "YAML configuration file to validate (required)")
	_ = validateCmd.MarkFlagRequired("file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration %s is valid\n", path)
	fmt.Printf("  gateway: %s (demo=%v)\n", cfg.Gateway.Type, cfg.Gateway.Demo)
	fmt.Printf("  primary assets: %v\n", cfg.AssetSelection.PrimaryAssets)
	fmt.Printf("  initial balance: %.2f\n", cfg.Risk.InitialBalance)
	return nil
}
