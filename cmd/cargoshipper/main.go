// cargoshipper is an MCP server that lets an AI host manage Docker
// containers, DigitalOcean droplets and domains, and Cloudflare zones.
//
// Add to an MCP host configuration:
//
//	{
//	  "mcpServers": {
//	    "cargoshipper": {
//	      "command": "/path/to/cargoshipper",
//	      "args": ["serve"],
//	      "env": {"DIGITALOCEAN_TOKEN": "...", "CLOUDFLARE_API_TOKEN": "..."}
//	    }
//	  }
//	}
package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cargoshipper",
	Short: "MCP server for Docker, DigitalOcean and Cloudflare",
	Long: heredoc.Doc(`
		cargoshipper exposes container, VPS and DNS management to any
		MCP-compatible AI host.

		Backends are enabled by configuration:

		  docker         docker.enabled (default true), DOCKER_HOST
		  digitalocean   DIGITALOCEAN_TOKEN
		  cloudflare     CLOUDFLARE_API_TOKEN, or CLOUDFLARE_EMAIL + CLOUDFLARE_API_KEY

		Every configured credential is probed at startup. Mutating tools are
		refused when the probe shows the credential cannot perform them; set
		permissions.enforce=false to log the refusal and proceed instead.

		All logging goes to stderr so it does not interfere with the stdio
		transport.
	`),
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./cargoshipper.yaml or ~/.config/cargoshipper-mcp/cargoshipper.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}
