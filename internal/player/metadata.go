package player

import (
	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyrisync/internal/track"
)

// ParseMetadata reads the xesam/mpris fields of a Metadata property.
// artist and album may be arrays or single strings depending on the player.
func ParseMetadata(metadata map[string]dbus.Variant) track.Info {
	return track.Info{
		Title:        extractString(metadata, "xesam:title"),
		Artist:       extractFirst(metadata, "xesam:artist"),
		Album:        extractFirst(metadata, "xesam:album"),
		ArtworkURL:   extractString(metadata, "mpris:artUrl"),
		ExternalID:   track.ExtractExternalID(extractString(metadata, "mpris:trackid")),
		DurationSecs: extractMicroseconds(metadata, "mpris:length"),
	}
}

func variantValue(metadata map[string]dbus.Variant, key string) any {
	if metadata == nil {
		return nil
	}

	variant, exists := metadata[key]
	if !exists {
		return nil
	}

	return variant.Value()
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	switch typed := variantValue(metadata, key).(type) {
	case string:
		return typed
	case dbus.ObjectPath:
		return string(typed)
	default:
		return ""
	}
}

func extractFirst(metadata map[string]dbus.Variant, key string) string {
	switch typed := variantValue(metadata, key).(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

func extractMicroseconds(metadata map[string]dbus.Variant, key string) float64 {
	return microsToSeconds(variantValue(metadata, key))
}

// microsToSeconds converts the integer types players use for lengths and
// positions. negative or unknown values are 0.
func microsToSeconds(raw any) float64 {
	switch typed := raw.(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return float64(typed) / 1_000_000
	case uint64:
		return float64(typed) / 1_000_000
	case int32:
		if typed <= 0 {
			return 0
		}
		return float64(typed) / 1_000_000
	case uint32:
		return float64(typed) / 1_000_000
	case float64:
		if typed <= 0 {
			return 0
		}
		return typed / 1_000_000
	default:
		return 0
	}
}
