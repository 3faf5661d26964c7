package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/config"
)

var (
	// global flags
	configPath   string
	pipeMode     bool
	databasePath string
	blockList    []string
	debugLog     bool
	providerList []string
	noKaraoke    bool
	syncOffset   float64
	hideHeader   bool
	compact      bool
)

var rootCmd = &cobra.Command{
	Use:   "lyrisync",
	Short: "synchronized lyrics for the active mpris player",
	Long: `lyrisync follows whichever mpris player is active on the session bus and
shows time-synchronized lyrics for the playing track, with per-word karaoke
highlighting when the provider has word timings.

when run without a subcommand, it starts the terminal viewer. with --pipe it
prints the current line to stdout instead.`,
	Version:       "1.0.0",
	RunE:          runViewer,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyrisync/config.yaml)")
	flags.BoolVarP(&pipeMode, "pipe", "p", false, "print lines to stdout instead of the terminal viewer")
	flags.StringVar(&databasePath, "database", "", "lyrics database file")
	flags.StringSliceVar(&blockList, "block", nil, "ignore players whose bus name contains any of these")
	flags.BoolVar(&debugLog, "debug-log", false, "log at debug level")
	flags.StringSliceVar(&providerList, "providers", nil, "ordered lyrics providers (lrclib, musixmatch)")
	flags.BoolVar(&noKaraoke, "no-karaoke", false, "disable per-word highlighting")
	flags.Float64VarP(&syncOffset, "sync-offset", "s", 0, "initial sync offset in seconds")
	flags.BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	rootCmd.Flags().BoolVar(&compact, "compact", false, "draw lyrics as plain text")
}

// loadConfig resolves the config file and environment, then applies every
// flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("pipe") {
		cfg.Pipe = pipeMode
	}
	if flags.Changed("database") {
		cfg.Database = databasePath
	}
	if flags.Changed("block") {
		cfg.Block = blockList
	}
	if flags.Changed("debug-log") {
		cfg.DebugLog = debugLog
	}
	if flags.Changed("providers") {
		cfg.Providers = providerList
	}
	if flags.Changed("no-karaoke") {
		cfg.Karaoke = !noKaraoke
	}
	if flags.Changed("sync-offset") {
		cfg.SyncOffset = syncOffset
	}
	if flags.Changed("hide-header") {
		cfg.HideHeader = hideHeader
	}

	cfg.Normalize()
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
