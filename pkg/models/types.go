package models

import "encoding/json"

// Response is the envelope the Normalizer hands back to the agent: the
// shaped data plus the fully-resolved upstream URL for citation. When
// the upstream call failed, Error and ErrorMessage carry the failure so
// the model can quote it; Data is empty in that case.
type Response struct {
	Data         interface{} `json:"data"`
	URL          string      `json:"url"`
	Error        int         `json:"error,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Encode renders the response as the JSON string fed back to the model
// as a tool result.
func (r Response) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SongPlays is the client-side aggregate for play-count queries; the
// upstream has no native "count plays of song X" endpoint.
type SongPlays struct {
	Song  string `json:"song"`
	Plays int    `json:"plays"`
}

// Album is derived by grouping album-track rows that share album_url.
// It exists only inside a single request/response cycle. Presentation
// code detects album payloads by the presence of the tracks field.
type Album struct {
	AlbumURL    string  `json:"album_url"`
	AlbumTitle  string  `json:"album_title"`
	ReleaseDate string  `json:"releasedate"`
	Artist      string  `json:"artist"`
	Tracks      []Track `json:"tracks"`
}

// Track is one row of an album in fetch order.
type Track struct {
	Position  interface{} `json:"position"`
	SongName  string      `json:"song_name"`
	TrackTime string      `json:"tracktime"`
}
