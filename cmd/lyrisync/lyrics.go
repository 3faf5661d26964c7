package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/providers"
	"karolbroda.com/lyrisync/internal/track"
)

var (
	// flags for lyrics fetch
	fetchAlbum    string
	fetchDuration float64
	fetchSave     bool

	// flags for lyrics show
	showFormat string
)

var (
	timestampColor = color.New(color.FgYellow).SprintFunc()
	wordColor      = color.New(color.FgHiGreen).SprintFunc()
	dimColor       = color.New(color.Faint).SprintFunc()
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "fetch and preview lyrics",
	Long:  `query the configured providers for a track, or preview a stored lyrics file in the terminal.`,
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "fetch lyrics through the provider chain",
	Long: `runs the configured providers in order, exactly as the viewer does for the
playing track, and prints the first synced result. use --save to store it in
the lyrics database.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		info := track.Info{
			Artist:       args[0],
			Title:        args[1],
			Album:        fetchAlbum,
			DurationSecs: fetchDuration,
		}

		list := buildProviders(cfg)
		if len(list) == 0 {
			return fmt.Errorf("no providers configured")
		}

		fmt.Printf("searching for: %s - %s\n\n", info.Artist, info.Title)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		result, name, err := providers.Chain(ctx, list, providers.RequestFor(info))
		if err != nil {
			return fmt.Errorf("lyrics lookup failed: %w", err)
		}
		if result.Empty() {
			fmt.Println("no synced lyrics found")
			return nil
		}

		fmt.Printf("provider: %s\n", name)
		fmt.Printf("source:   %s\n", result.Source)
		fmt.Printf("lines:    %d\n", len(result.Lines))
		if lyrics.HasWordTimings(result.Lines) {
			fmt.Println("words:    timed")
		}
		fmt.Println()
		printLines(result.Lines)

		if !fetchSave {
			return nil
		}

		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		if err := db.Store(info, result.Source, result.Raw); err != nil {
			return fmt.Errorf("failed to save lyrics: %w", err)
		}
		fmt.Printf("\nsaved to %s\n", db.Path())

		return nil
	},
}

var lyricsShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "preview a lyrics file",
	Long: `parse an lrc file or a stored subtitles/richsync payload and print its
timed lines. the format is detected from the content unless --format is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read lyrics file: %w", err)
		}
		raw := string(data)

		source := detectSource(raw)
		if showFormat != "" {
			source = cache.Format(showFormat).Source()
		}

		lines, err := lyrics.ParseStored(raw, source)
		if err != nil {
			return fmt.Errorf("failed to parse lyrics: %w", err)
		}
		if len(lines) == 0 {
			fmt.Println("no timed lines found")
			return nil
		}

		fmt.Printf("format: %s, %d lines\n\n", cache.FormatFor(source), len(lines))
		printLines(lines)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsShowCmd)

	lyricsFetchCmd.Flags().StringVar(&fetchAlbum, "album", "", "album name")
	lyricsFetchCmd.Flags().Float64Var(&fetchDuration, "duration", 0, "track length in seconds")
	lyricsFetchCmd.Flags().BoolVar(&fetchSave, "save", false, "store the result in the lyrics database")

	lyricsShowCmd.Flags().StringVar(&showFormat, "format", "", "payload format: lrc, subtitles, richsync")
}

// detectSource guesses the payload kind from its content.
func detectSource(raw string) lyrics.Source {
	if lyrics.IsRichsyncPayload(raw) {
		return lyrics.SourceRichsync
	}

	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[{") {
		return lyrics.SourceLrclib
	}
	if strings.Contains(trimmed, `"ts"`) {
		return lyrics.SourceRichsync
	}
	return lyrics.SourceSubtitles
}

func printLines(lines []lyrics.Line) {
	for _, line := range lines {
		fmt.Printf("%s %s\n", timestampColor(lyrics.FormatTimestamp(line.TimeSeconds)), line.Text)
		if !line.HasWords() {
			continue
		}

		parts := make([]string, 0, len(line.Words))
		for _, w := range line.Words {
			parts = append(parts, fmt.Sprintf("%s%s", wordColor(w.Text), dimColor(fmt.Sprintf("@%.2f", w.Start))))
		}
		fmt.Printf("           %s\n", strings.Join(parts, " "))
	}
}
