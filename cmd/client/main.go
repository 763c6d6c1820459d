package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"discord-chat-manager/cmd/client/config"
	"discord-chat-manager/internal/apiclient"
	"discord-chat-manager/internal/pkg/term"
)

// app - зависимости, общие для всех команд.
type app struct {
	cfg  *config.ClientConfig
	api  *apiclient.Client
	term *term.Terminal
}

var (
	configPath string
	serverURL  string
	cli        = &app{term: term.NewTerminal()}
)

var rootCmd = &cobra.Command{
	Use:   "dcm",
	Short: "Discord chat manager client",
	Long: `dcm sends search, delete, edit, purge and export jobs to the
discord-chat-manager server and follows their progress.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClientConfig(configPath)
		if err != nil {
			return err
		}
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cli.cfg = cfg
		cli.api = apiclient.NewClient(cfg.ServerURL, cfg.HTTPTimeout)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "client_config.yml", "client config file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server address (overrides config)")

	rootCmd.AddCommand(
		newSearchCmd(),
		newDeleteCmd(),
		newEditCmd(),
		newPurgeCmd(),
		newExportCmd(),
		newStatusCmd(),
		newResultCmd(),
		newCancelCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
