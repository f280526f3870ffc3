package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	cfgFile     string
	gatewayAddr string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "Toolgate - tool execution gateway for IT automation",
	Long: `Toolgate is a tool execution gateway: it merges built-in and
catalog-defined operational tools into a hot-reloadable registry and
executes them locally or through a remote execution pipeline, with
parameter validation, credential-aware asset intelligence and output
redaction.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.toolgate/toolgate.yaml)")
	rootCmd.PersistentFlags().StringVar(&gatewayAddr, "gateway", "http://127.0.0.1:8210", "address of a running gateway (for tools subcommands)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}
