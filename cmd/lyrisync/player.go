package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/colors"
	"karolbroda.com/lyrisync/internal/player"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "mpris player utilities",
	Long:  `discover mpris-compatible music players and inspect the one lyrisync would follow.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list every mpris player on the session bus, marking blocked players and the one that would be followed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		conn, err := player.SessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer conn.Close()

		services, err := conn.ActivePlayers()
		if err != nil {
			return fmt.Errorf("failed to list players: %w", err)
		}

		if len(services) == 0 {
			fmt.Println("no mpris players found")
			fmt.Println("\ncheck if your music player is running and supports mpris")
			return nil
		}

		active := player.SelectActive(services, cfg.Block)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Service", "Identity", "Status", "Note"})

		for _, service := range services {
			status, err := conn.PlaybackStatus(service)
			if err != nil {
				status = "-"
			}

			note := ""
			switch {
			case player.IsBlocked(service, cfg.Block):
				note = "blocked"
			case service == active:
				note = "active"
			}

			t.AppendRow(table.Row{service, conn.Identity(service), status, note})
		}

		t.Render()

		return nil
	},
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show what the active player is playing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		conn, err := player.SessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer conn.Close()

		services, err := conn.ActivePlayers()
		if err != nil {
			return fmt.Errorf("failed to list players: %w", err)
		}

		service := player.SelectActive(services, cfg.Block)
		if service == "" {
			return player.ErrNoPlayer
		}

		info, err := conn.Metadata(service)
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}

		status, err := conn.PlaybackStatus(service)
		if err != nil {
			status = "unknown"
		}

		position, err := conn.Position(service)
		if err != nil {
			position = 0
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendRow(table.Row{"player", fmt.Sprintf("%s (%s)", conn.Identity(service), service)})
		t.AppendRow(table.Row{"status", status})
		t.AppendRow(table.Row{"title", info.Title})
		t.AppendRow(table.Row{"artist", info.Artist})
		if info.Album != "" {
			t.AppendRow(table.Row{"album", info.Album})
		}
		progress := colors.FormatTime(position)
		if info.HasDuration() {
			progress += " / " + colors.FormatTime(info.DurationSecs)
		}
		t.AppendRow(table.Row{"position", progress})
		if info.ExternalID != "" {
			t.AppendRow(table.Row{"track id", info.ExternalID})
		}
		t.Render()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerCurrentCmd)
}
