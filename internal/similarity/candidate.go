package similarity

// Candidate is a decoded search result object. catalogs disagree on key
// names, so lookups try several variants and descend into "attributes"
// when present.
type Candidate map[string]any

var (
	titleKeys  = []string{"name", "title", "track_name"}
	artistKeys = []string{"artistName", "artist", "artist_name"}
	albumKeys  = []string{"albumName", "album", "album_name", "album_vanity_id"}
)

func (c Candidate) attrs() map[string]any {
	if nested, ok := c["attributes"].(map[string]any); ok {
		return nested
	}
	return c
}

func (c Candidate) firstString(keys []string) (string, bool) {
	attrs := c.attrs()
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			s, isString := v.(string)
			return s, isString
		}
	}
	return "", false
}

func (c Candidate) Title() string {
	s, _ := c.firstString(titleKeys)
	return s
}

func (c Candidate) Artist() string {
	s, _ := c.firstString(artistKeys)
	return s
}

func (c Candidate) Album() string {
	s, _ := c.firstString(albumKeys)
	return s
}

func (c Candidate) HasTitle() bool {
	_, ok := c.firstString(titleKeys)
	return ok
}

func (c Candidate) HasArtist() bool {
	_, ok := c.firstString(artistKeys)
	return ok
}

// Duration returns seconds, or 0 when no duration key is present.
func (c Candidate) Duration() float64 {
	attrs := c.attrs()
	if v, ok := number(attrs["durationInMillis"]); ok {
		return v / 1000
	}
	if v, ok := number(attrs["durationMs"]); ok {
		return v / 1000
	}
	if v, ok := number(attrs["duration"]); ok {
		if v > 1000 {
			return v / 1000
		}
		return v
	}
	if v, ok := number(attrs["track_length"]); ok {
		return v
	}
	return 0
}

// Int reads an integer field such as commontrack_id.
func (c Candidate) Int(key string) (int64, bool) {
	v, ok := number(c.attrs()[key])
	return int64(v), ok
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
