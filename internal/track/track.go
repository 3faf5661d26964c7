package track

import (
	"strings"
)

const spotifyURIMarker = "spotify:track:"

// Info is the metadata the active player reports for its current track.
// DurationSecs is zero when the player did not report a length.
type Info struct {
	Title        string
	Artist       string
	Album        string
	DurationSecs float64
	ExternalID   string
	ArtworkURL   string
}

func (t Info) IsValid() bool {
	return t.Title != "" && t.Artist != ""
}

func (t Info) HasDuration() bool {
	return t.DurationSecs > 0
}

// IsSameTrack compares the identity fields. Artwork is presentation only.
func (t Info) IsSameTrack(other Info) bool {
	return t.Title == other.Title &&
		t.Artist == other.Artist &&
		t.Album == other.Album &&
		t.DurationSecs == other.DurationSecs &&
		t.ExternalID == other.ExternalID
}

// ExtractExternalID pulls a spotify track id out of an mpris:trackid value.
// Object paths such as /com/spotify/track/<id> yield their last segment when
// it is 22 characters long; spotify:track:<id> URIs yield the suffix.
func ExtractExternalID(trackID string) string {
	if trackID == "" {
		return ""
	}

	if idx := strings.LastIndex(trackID, "/"); idx >= 0 {
		candidate := trackID[idx+1:]
		if len(candidate) == 22 {
			return candidate
		}
	}

	if idx := strings.Index(trackID, spotifyURIMarker); idx >= 0 {
		candidate := trackID[idx+len(spotifyURIMarker):]
		if candidate != "" {
			return candidate
		}
	}

	return ""
}
