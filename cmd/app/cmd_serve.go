package main

import (
	"MHIRebal/internal/di"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the weekly decision job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		return app.Run(cmd.Context())
	},
}

func init() { rootCmd.AddCommand(serveCmd) }
