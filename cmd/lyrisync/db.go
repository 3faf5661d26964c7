package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/colors"
	"karolbroda.com/lyrisync/internal/similarity"
)

const maxSuggestions = 5

var (
	// flags for db list
	dbSortBy string
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "manage the lyrics database",
	Long:  `inspect and edit the lyrics database used to skip provider lookups for known tracks.`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show database statistics",
	Long:  `display the number of stored tracks per lyrics format, the file size and its location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}

		count, byFormat, sizeBytes, err := db.Stats()
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		fmt.Println("database statistics:")
		fmt.Printf("  location:  %s\n", db.Path())
		fmt.Printf("  entries:   %d\n", count)
		fmt.Printf("  size:      %s\n", formatBytes(sizeBytes))
		for _, format := range []cache.Format{cache.FormatLRC, cache.FormatSubtitles, cache.FormatRichsync} {
			fmt.Printf("  %-10s %d\n", string(format)+":", byFormat[format])
		}

		return nil
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all stored tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}

		entries := db.List()
		if len(entries) == 0 {
			fmt.Println("database is empty")
			return nil
		}

		sortEntries(entries, dbSortBy)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Artist", "Title", "Album", "Length", "Format", "Stored"})

		for _, entry := range entries {
			stored := "-"
			if entry.CreatedAt > 0 {
				stored = time.Unix(entry.CreatedAt, 0).Format("2006-01-02")
			}
			length := "-"
			if entry.Duration > 0 {
				length = colors.FormatTime(entry.Duration)
			}
			t.AppendRow(table.Row{entry.Artist, entry.Title, entry.Album, length, entry.Format, stored})
		}

		t.Render()
		fmt.Printf("\ntotal: %d tracks\n", len(entries))

		return nil
	},
}

var dbShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show the stored lyrics for a track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}

		matches := findEntries(db, args[0], args[1])
		if len(matches) == 0 {
			return notFound(db, args[0], args[1])
		}

		for i, entry := range matches {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("key:      %s\n", entry.Key())
			fmt.Printf("artist:   %s\n", entry.Artist)
			fmt.Printf("title:    %s\n", entry.Title)
			fmt.Printf("album:    %s\n", entry.Album)
			fmt.Printf("duration: %.1fs\n", entry.Duration)
			fmt.Printf("format:   %s\n", entry.Format)
			if entry.CreatedAt > 0 {
				fmt.Printf("stored:   %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
			}

			lines, err := entry.Lines()
			if err != nil {
				fmt.Printf("\nunreadable lyrics: %v\n", err)
				continue
			}
			fmt.Printf("\n%d lines\n", len(lines))
			printLines(lines)
		}

		return nil
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove a track from the database",
	Long:  `remove every stored entry for the track, whatever its album or length.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd)
		if err != nil {
			return err
		}

		matches := findEntries(db, args[0], args[1])
		if len(matches) == 0 {
			return notFound(db, args[0], args[1])
		}

		for _, entry := range matches {
			if err := db.Delete(entry.Key()); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
				return fmt.Errorf("failed to delete from database: %w", err)
			}
		}

		fmt.Printf("deleted %d entries for '%s - %s'\n", len(matches), args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbShowCmd)
	dbCmd.AddCommand(dbDeleteCmd)

	dbListCmd.Flags().StringVar(&dbSortBy, "sort", "artist", "sort by: artist, title, date")
}

func openDatabase(cmd *cobra.Command) (*cache.Database, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	path := cfg.Database
	if path == "" {
		path, err = cache.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	}

	db, err := cache.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lyrics database: %w", err)
	}
	return db, nil
}

func findEntries(db *cache.Database, artist string, title string) []*cache.Entry {
	return lo.Filter(db.List(), func(e *cache.Entry, _ int) bool {
		return strings.EqualFold(strings.TrimSpace(e.Artist), strings.TrimSpace(artist)) &&
			strings.EqualFold(strings.TrimSpace(e.Title), strings.TrimSpace(title))
	})
}

func notFound(db *cache.Database, artist string, title string) error {
	suggestions := suggestEntries(db.List(), artist, title)
	if len(suggestions) == 0 {
		return fmt.Errorf("track not found in database")
	}

	fmt.Fprintf(os.Stderr, "track not found in database\n\n")
	fmt.Fprintf(os.Stderr, "did you mean one of these?\n")
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", s.Artist, s.Title)
	}
	return fmt.Errorf("no exact match for '%s - %s'", artist, title)
}

// suggestEntries ranks stored tracks by how closely artist and title match.
func suggestEntries(entries []*cache.Entry, artist string, title string) []*cache.Entry {
	type scored struct {
		entry *cache.Entry
		score float64
	}

	var ranked []scored
	for _, e := range entries {
		titleScore := similarity.TitleScore(e.Title, title)
		artistScore := similarity.ArtistScore(e.Artist, artist)
		if titleScore < 0.5 || artistScore < 0.5 {
			continue
		}
		ranked = append(ranked, scored{entry: e, score: titleScore + artistScore})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > maxSuggestions {
		ranked = ranked[:maxSuggestions]
	}

	return lo.Map(ranked, func(s scored, _ int) *cache.Entry {
		return s.entry
	})
}

func sortEntries(entries []*cache.Entry, sortBy string) {
	switch sortBy {
	case "title":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
		})
	case "date":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CreatedAt > entries[j].CreatedAt
		})
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
