package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/config"
	"karolbroda.com/lyrisync/internal/engine"
	"karolbroda.com/lyrisync/internal/logging"
	"karolbroda.com/lyrisync/internal/pipe"
	"karolbroda.com/lyrisync/internal/player"
	"karolbroda.com/lyrisync/internal/providers"
	"karolbroda.com/lyrisync/internal/state"
	"karolbroda.com/lyrisync/internal/terminal"
	"karolbroda.com/lyrisync/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the lyrics viewer",
	Long:  `starts following the active player and displaying synchronized lyrics.`,
	RunE:  runViewer,
}

func init() {
	runCmd.Flags().BoolVar(&compact, "compact", false, "draw lyrics as plain text")
	rootCmd.AddCommand(runCmd)
}

func buildProviders(cfg *config.Config) []providers.Provider {
	return providers.Build(cfg.Providers, providers.Options{
		LrclibURL:       cfg.LrclibURL,
		MusixmatchToken: cfg.MusixmatchToken,
		Client:          providers.SharedClient(),
	})
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closeLog, err := logging.Setup(cfg.DebugLog, cfg.Pipe)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	conn, err := player.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	opts := engine.Options{
		Providers:    buildProviders(cfg),
		Block:        cfg.Block,
		TickInterval: config.PollInterval,
	}

	if cfg.Database != "" {
		db, err := cache.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open lyrics database: %w", err)
		}
		opts.Store = db

		go func() {
			if err := db.Watch(ctx, nil); err != nil {
				slog.Warn("not watching lyrics database", "path", db.Path(), "error", err)
			}
		}()
	}

	watcher := player.NewWatcher(conn, cfg.Block)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("player watcher stopped", "error", err)
		}
	}()

	eng := engine.New(conn, opts)
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx, watcher.Events())
	}()

	slog.Info("started", "pipe", cfg.Pipe, "providers", cfg.Providers, "database", cfg.Database)

	if cfg.Pipe {
		err = pipe.Run(ctx, os.Stdout, eng.Snapshots(), cfg.SyncOffset)
	} else {
		err = runTUI(ctx, cfg, eng.Snapshots())
	}

	// the engine publishes a last snapshot on the way out
	stop()
	go drain(eng.Snapshots())
	if engineErr := <-engineDone; engineErr != nil && !errors.Is(engineErr, context.Canceled) {
		slog.Debug("engine stopped", "error", engineErr)
	}

	return err
}

func drain(snapshots <-chan state.Snapshot) {
	for range snapshots {
	}
}

func runTUI(ctx context.Context, cfg *config.Config, snapshots <-chan state.Snapshot) error {
	defer terminal.Reset(os.Stdout)

	model := ui.NewModel(ui.ModelConfig{
		Snapshots:  snapshots,
		SyncOffset: cfg.SyncOffset,
		Karaoke:    cfg.Karaoke,
		Compact:    compact,
		HideHeader: cfg.HideHeader,
		TermCaps:   terminal.DetectCapabilities(cfg.UseKittyGraphics),
		Client:     providers.SharedClient(),
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running bubble tea: %w", err)
	}

	return nil
}
