package cmd

import (
	"soundvault/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the SoundVault HTTP server",
	Long:  `Start the SoundVault HTTP server, serving the catalog and streaming API.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
