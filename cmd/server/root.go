package main

import (
	"github.com/spf13/cobra"

	"github.com/lex1olnk/mang2/internal/config"
)

var (
	// set during PersistentPreRunE
	cfg *config.Config

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "mang2",
	Short: "Schema-driven data access server",
	Long: `mang2 serves authorized CRUD over the models declared by an OpenAPI
schema document and a policy file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "hash-password" {
			return nil
		}
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
		} else {
			cfg, err = config.Load()
		}
		return err
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: app.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}
