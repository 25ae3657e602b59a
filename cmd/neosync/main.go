package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pixelhosted/neosync/internal/config"
	"github.com/pixelhosted/neosync/internal/neocities"
	"github.com/pixelhosted/neosync/internal/sync"
	"github.com/pixelhosted/neosync/internal/version"
)

var logLevel = new(slog.LevelVar)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "neosync",
	Short:   "Sync local directories with neocities.org sites",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	RunE: runSync,
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "C", config.DefaultConfigPath, "path to the config file")
	rootCmd.PersistentFlags().StringArrayP("site", "s", nil, "site to sync, glob patterns allowed (repeatable; default all)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "more output (repeatable)")
	rootCmd.PersistentFlags().CountP("quiet", "q", "less output (repeatable)")
	rootCmd.Flags().BoolP("dry-run", "d", false, "report the plan without uploading or deleting anything")
	rootCmd.Flags().Int("concurrency", 4, "max concurrent uploads and deletes")
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) error {
	verbose, _ := cmd.Flags().GetCount("verbose")
	quiet, _ := cmd.Flags().GetCount("quiet")
	switch level := quiet - verbose; {
	case level < 0:
		logLevel.Set(slog.LevelDebug)
	case level == 0:
		logLevel.Set(slog.LevelInfo)
	case level == 1:
		logLevel.Set(slog.LevelWarn)
	default:
		logLevel.Set(slog.LevelError)
	}

	viper.SetEnvPrefix("NEOSYNC")
	viper.AutomaticEnv()
	return viper.BindPFlag("config", cmd.Flags().Lookup("config"))
}

func runSync(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	sites, err := loadSelectedSites(cmd)
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	ctx := cmd.Context()

	failed := false
	for _, site := range sites {
		if ctx.Err() != nil {
			slog.Warn("interrupted, skipping remaining sites")
			failed = true
			break
		}

		slog.Debug("starting sync", "config", site)
		client := neocities.New(site.APIKey)
		runner, err := sync.NewRunner(site, client, sync.RunOptions{DryRun: dryRun, Concurrency: concurrency})
		if err != nil {
			slog.Error("sync setup failed", "site", site.Name, "error", err)
			failed = true
			continue
		}

		report, err := runner.Run(ctx)
		if err != nil {
			slog.Error("sync failed", "site", site.Name, "error", err)
			failed = true
			continue
		}

		printSummary(site.Name, report, dryRun)
		if !report.Ok() {
			failed = true
		}
	}

	if failed {
		return errors.New("sync finished with errors")
	}
	return nil
}

// loadSelectedSites loads the config file and applies the -s selectors.
// Selectors are glob patterns over the site names from the config file.
func loadSelectedSites(cmd *cobra.Command) ([]*config.SiteConfig, error) {
	sites, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	patterns, _ := cmd.Flags().GetStringArray("site")
	if len(patterns) == 0 {
		return sites, nil
	}

	var selected []*config.SiteConfig
	for _, site := range sites {
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, site.Name); ok {
				selected = append(selected, site)
				break
			}
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no sites match %v", patterns)
	}
	return selected, nil
}

func printSummary(name string, report *sync.Report, dryRun bool) {
	if dryRun {
		fmt.Printf("%s %s: would apply %d action(s)\n", cyan("DRY-RUN"), name, len(report.Skipped))
		return
	}

	status := green("OK")
	if !report.Ok() {
		status = red("FAILED")
	}
	fmt.Printf("%s %s: %d applied, %d failed, %d skipped\n",
		status, name, len(report.Succeeded), len(report.Failed), len(report.Skipped))
}
