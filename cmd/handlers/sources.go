package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"roundup/internal/zulip"
)

// NewSourcesCmd creates the sources command, which lists the configured
// sources and optionally validates Zulip stream IDs against the API.
func NewSourcesCmd() *cobra.Command {
	var validate bool

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Confluence sources (%d):\n", len(cfg.Sources.Confluence))
			for _, s := range cfg.Sources.Confluence {
				fmt.Fprintf(out, "  %-40s %-20s %s\n", s.Name, s.WorkGroup, s.URL)
			}

			fmt.Fprintf(out, "\nZulip sources (%d):\n", len(cfg.Sources.Zulip))

			var client *zulip.Client
			if validate {
				client, err = zulip.NewClient(cfg.Zulip, cfg.Processing.FetchTimeoutDuration())
				if err != nil {
					return fmt.Errorf("cannot validate streams: %w", err)
				}
			}

			for _, s := range cfg.Sources.Zulip {
				status := ""
				if client != nil {
					id, err := client.GetStreamID(cmd.Context(), s.StreamName)
					switch {
					case err != nil:
						status = fmt.Sprintf("  [unresolved: %v]", err)
					case id != s.StreamID:
						status = fmt.Sprintf("  [stream_id mismatch: configured %d, actual %d]", s.StreamID, id)
					default:
						status = "  [ok]"
					}
				}
				fmt.Fprintf(out, "  %-40s %-20s #%s (id %d)%s\n", s.Name, s.WorkGroup, s.StreamName, s.StreamID, status)
			}
			return nil
		},
	}

	sourcesCmd.Flags().BoolVar(&validate, "validate", false, "check Zulip stream IDs against the API")

	return sourcesCmd
}
