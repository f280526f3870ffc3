package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opspilot/toolgate/internal/config"
	"github.com/opspilot/toolgate/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool execution gateway",
	Long: `Run the gateway in the foreground: load the catalog, start the
HTTP API and serve execute/list/reload requests until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	return d.Run(context.Background())
}
