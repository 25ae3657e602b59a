package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pixelhosted/neosync/internal/neocities"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show remote metadata for the configured sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			sites, err := loadSelectedSites(cmd)
			if err != nil {
				return err
			}

			for _, site := range sites {
				client := neocities.New(site.APIKey)
				info, err := client.Info(cmd.Context())
				if err != nil {
					slog.Error("info failed", "site", site.Name, "error", err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s.neocities.org", site.Name, info.SiteName)
				if info.Domain != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", info.Domain)
				}
				fmt.Fprintf(cmd.OutOrStdout(), " views=%d hits=%d", info.Views, info.Hits)
				if len(info.Tags) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), " tags=%s", strings.Join(info.Tags, ","))
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}
