package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/spf13/cobra"
)

var formatFlag string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Probe every configured credential once and print what it can do",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		logger, err := newLogger(s.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		a, err := newApp(cmd.Context(), s, logger)
		if err != nil {
			return err
		}
		defer a.close()

		res := a.inspector().Inspect(cmd.Context(), a.backends())
		return printResult(cmd.OutOrStdout(), res, formatFlag)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&formatFlag, "format", "json", "output format: json or text")
}

// printResult writes res as indented JSON, or as guidance text for every
// known backend, configured or not.
func printResult(w io.Writer, res *constraints.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text":
		for _, b := range []string{constraints.BackendDocker, constraints.BackendDigitalOcean, constraints.BackendCloudflare} {
			rec, _ := res.Get(b)
			if _, err := fmt.Fprintln(w, constraints.Guidance(b, rec)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json or text)", format)
	}
}
