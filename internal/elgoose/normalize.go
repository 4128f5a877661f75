package elgoose

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/camberg23/el-goose/pkg/models"
)

// Normalizer translates the loosely-typed parameters chosen by the
// model into concrete upstream calls. The upstream endpoints do not
// compose uniformly: some want path segments, some want query strings,
// some need client-side aggregation, and the shows listing leaks
// future-dated rows that must be dropped. Each quirk is one rule in a
// prioritized list; the first matching rule fully determines behavior.
type Normalizer struct {
	client   *Client
	logger   zerolog.Logger
	artistID int
	rules    []rule

	// now is swapped out in tests so the future-show filter can be
	// checked against a fixed date.
	now func() time.Time
}

type rule struct {
	name  string
	match func(*QueryRequest) bool
	run   func(context.Context, *QueryRequest) (models.Response, error)
}

// NewNormalizer builds a dispatcher bound to the given Gateway client.
// artistID is the default artist filter for list endpoints (1 is Goose
// itself).
func NewNormalizer(client *Client, artistID int, logger zerolog.Logger) *Normalizer {
	if artistID == 0 {
		artistID = 1
	}

	n := &Normalizer{
		client:   client,
		logger:   logger,
		artistID: artistID,
		now:      time.Now,
	}

	n.rules = []rule{
		{name: "list_with_column", match: matchListColumn, run: n.listColumn},
		{name: "song_play_count", match: matchSongPlayCount, run: n.songPlayCount},
		{name: "top_played_songs", match: matchTopPlayed, run: n.topPlayedSongs},
		{name: "appearances_by_name", match: matchAppearancesByName, run: n.appearancesByName},
		{name: "albums", match: func(q *QueryRequest) bool { return q.Method == "albums" }, run: n.albums},
	}

	return n
}

// Normalize resolves a query against the rule list and returns the
// {data, url} envelope as a JSON string. Upstream failures never
// surface as Go errors; they flow through as error fields on the
// envelope. A Go error here means the caller's parameters were
// malformed (for example a name filter with no value to match).
func (n *Normalizer) Normalize(ctx context.Context, req *QueryRequest) (string, error) {
	resp, err := n.dispatch(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Encode()
}

func (n *Normalizer) dispatch(ctx context.Context, req *QueryRequest) (models.Response, error) {
	for _, r := range n.rules {
		if r.match(req) {
			n.logger.Debug().Str("rule", r.name).Str("method", req.Method).Msg("query matched rule")
			return r.run(ctx, req)
		}
	}
	return n.defaultHandler(ctx, req)
}

func matchListColumn(q *QueryRequest) bool {
	return q.Method == "list" && q.Column != ""
}

var songNameColumns = map[string]bool{"song": true, "songname": true, "name": true}

func matchSongPlayCount(q *QueryRequest) bool {
	return q.Method == "songs" && songNameColumns[q.Column]
}

func matchTopPlayed(q *QueryRequest) bool {
	return q.Method == "songs" && q.OrderBy == "times_played"
}

func matchAppearancesByName(q *QueryRequest) bool {
	return q.Method == "appearances" && q.Column != "" &&
		q.Column != "person_id" && q.Column != "show_id"
}

// listColumn handles /list/{column}.json, which takes artist and
// showyear as query parameters rather than path segments.
func (n *Normalizer) listColumn(ctx context.Context, req *QueryRequest) (models.Response, error) {
	artist := n.artistID
	if req.Artist != nil {
		artist = *req.Artist
	}

	params := url.Values{}
	params.Set("artist", strconv.Itoa(artist))
	display := fmt.Sprintf("%s/list/%s.json?artist=%d", n.client.BaseURL(), req.Column, artist)
	if req.ShowYear != nil {
		params.Set("showyear", strconv.Itoa(*req.ShowYear))
		display += fmt.Sprintf("&showyear=%d", *req.ShowYear)
	}

	env := n.client.Fetch(ctx, "list/"+req.Column, nil, "", "", req.Format, params)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	return models.Response{Data: env.Data, URL: display}, nil
}

// songPlayCount counts plays of one song by fetching its setlist rows
// and counting them; the upstream has no aggregate endpoint for this.
func (n *Normalizer) songPlayCount(ctx context.Context, req *QueryRequest) (models.Response, error) {
	if req.Value == "" {
		return models.Response{}, fmt.Errorf("value is required when filtering songs by name")
	}

	encoded := encodeValue(strings.TrimSpace(req.Value))
	display := n.client.BuildURL("setlists", nil, "songname", encoded, "json")

	params := url.Values{}
	params.Set("order_by", "showdate")
	params.Set("direction", "asc")
	params.Set("limit", "10000")

	env := n.client.Fetch(ctx, "setlists", nil, "songname", encoded, req.Format, params)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	return models.Response{
		Data: models.SongPlays{Song: req.Value, Plays: len(env.Data)},
		URL:  display,
	}, nil
}

// topPlayedSongs tallies songname occurrences over the full setlist
// corpus. Ties keep encounter order, so two songs with equal counts
// appear in the order they were first seen.
func (n *Normalizer) topPlayedSongs(ctx context.Context, req *QueryRequest) (models.Response, error) {
	display := n.client.BaseURL() + "/setlists.json?aggregate=times_played"

	params := url.Values{}
	params.Set("limit", "100000")

	env := n.client.Fetch(ctx, "setlists", nil, "", "", req.Format, params)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	counts := make(map[string]int)
	var order []string
	for _, rec := range env.Data {
		name := rec.Str("songname")
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	limit := 5
	if req.Limit != nil && *req.Limit > 0 {
		limit = *req.Limit
	}
	if len(order) > limit {
		order = order[:limit]
	}

	rows := make([]models.SongPlays, 0, len(order))
	for _, name := range order {
		rows = append(rows, models.SongPlays{Song: name, Plays: counts[name]})
	}

	return models.Response{Data: rows, URL: display}, nil
}

// Ranked candidates for the field that encodes a person's name on
// appearance rows; the upstream schema is not documented, so the key
// is discovered from the first row when none of these match.
var nameKeyCandidates = []string{"personname", "person_name", "artist_name"}

// appearancesByName filters appearance rows by a case-insensitive
// substring match on whichever field holds the person's name. The
// upstream does not support name filtering on this endpoint natively.
func (n *Normalizer) appearancesByName(ctx context.Context, req *QueryRequest) (models.Response, error) {
	if req.Value == "" {
		return models.Response{}, fmt.Errorf("value is required when filtering appearances by name")
	}

	display := n.client.BaseURL() + "/appearances.json"

	env := n.client.Fetch(ctx, "appearances", nil, "", "", req.Format, nil)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	nameKey := discoverNameKey(env.Data)

	filtered := []Record{}
	if nameKey != "" {
		needle := strings.ToLower(req.Value)
		for _, rec := range env.Data {
			if strings.Contains(strings.ToLower(rec.Str(nameKey)), needle) {
				filtered = append(filtered, rec)
			}
		}
	}

	if req.Limit != nil && *req.Limit > 0 && len(filtered) > *req.Limit {
		filtered = filtered[:*req.Limit]
	}

	return models.Response{Data: filtered, URL: display}, nil
}

// discoverNameKey inspects the first row's schema: ranked candidates
// first, then the lexically-first key containing "name". An empty
// return means no name-like field exists and the caller yields an
// empty result set rather than an error.
func discoverNameKey(rows []Record) string {
	if len(rows) == 0 {
		return ""
	}

	var nameKeys []string
	for k := range rows[0] {
		if strings.Contains(strings.ToLower(k), "name") {
			nameKeys = append(nameKeys, k)
		}
	}
	sort.Strings(nameKeys)

	for _, cand := range nameKeyCandidates {
		for _, k := range nameKeys {
			if k == cand {
				return cand
			}
		}
	}

	if len(nameKeys) > 0 {
		return nameKeys[0]
	}
	return ""
}

// albums groups the flat track rows the albums endpoint returns into
// one entry per album_url, preserving row order within each album.
func (n *Normalizer) albums(ctx context.Context, req *QueryRequest) (models.Response, error) {
	sortField := req.OrderBy
	if sortField == "" || sortField == "release_date" {
		sortField = "releasedate"
	}
	direction := req.Direction
	if direction == "" {
		direction = "asc"
	}

	display := n.client.BuildURL("albums", nil, "", "", req.Format)

	params := url.Values{}
	params.Set("order_by", sortField)
	params.Set("direction", direction)

	env := n.client.Fetch(ctx, "albums", nil, "", "", req.Format, params)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	grouped := make(map[string]*models.Album)
	var order []string
	for _, rec := range env.Data {
		key := rec.Str("album_url")
		album, ok := grouped[key]
		if !ok {
			album = &models.Album{
				AlbumURL:    key,
				AlbumTitle:  rec.Str("album_title"),
				ReleaseDate: rec.Str("releasedate"),
				Artist:      rec.Str("artist"),
			}
			grouped[key] = album
			order = append(order, key)
		}
		album.Tracks = append(album.Tracks, models.Track{
			Position:  rec["position"],
			SongName:  rec.Str("song_name"),
			TrackTime: rec.Str("tracktime"),
		})
	}

	list := make([]models.Album, 0, len(order))
	for _, key := range order {
		list = append(list, *grouped[key])
	}

	desc := req.Direction == "desc"
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return list[i].ReleaseDate > list[j].ReleaseDate
		}
		return list[i].ReleaseDate < list[j].ReleaseDate
	})

	if req.Limit != nil && *req.Limit > 0 && len(list) > *req.Limit {
		list = list[:*req.Limit]
	}

	return models.Response{Data: list, URL: display}, nil
}

// defaultHandler covers everything the named rules do not: it applies
// the column aliases, the latest-to-shows redirection, value encoding,
// and then either the shows future-date handling or a plain
// passthrough to the Gateway.
func (n *Normalizer) defaultHandler(ctx context.Context, req *QueryRequest) (models.Response, error) {
	method := req.Method
	column := req.Column
	orderBy := req.OrderBy
	direction := req.Direction

	if column == "song" {
		column = "songname"
	}
	if column == "year" && (method == "setlists" || method == "shows") {
		column = "showyear"
	}

	// The latest endpoint always returns exactly one show, so a limit
	// above one only makes sense against the shows listing.
	if method == "latest" && req.Limit != nil && *req.Limit > 1 {
		method = "shows"
		if orderBy == "" {
			orderBy = "showdate"
		}
		if direction == "" {
			direction = "desc"
		}
	}

	value := encodeValue(req.Value)

	if method == "shows" && req.Identifier == nil {
		return n.recentShows(ctx, req, column, value)
	}

	display := n.client.BuildURL(method, req.Identifier, column, value, req.Format)

	params := url.Values{}
	if orderBy != "" {
		params.Set("order_by", orderBy)
	}
	if direction != "" {
		params.Set("direction", direction)
	}
	if req.Limit != nil {
		params.Set("limit", strconv.Itoa(*req.Limit))
	}

	env := n.client.Fetch(ctx, method, req.Identifier, column, value, req.Format, params)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	var data interface{}
	switch {
	case method == "shows" && direction == "desc":
		data = n.dropFutureShows(env.Data, 0)
	case env.Body != nil:
		if raw, ok := env.Body["data"]; ok {
			data = decodeRaw(raw)
		} else {
			// Payload without a data array: hand the whole thing back.
			data = decodeBody(env.Body)
		}
	default:
		data = env.Data
	}

	return models.Response{Data: data, URL: display}, nil
}

// recentShows over-fetches the descending shows listing and drops
// future-dated rows client-side. The upstream includes pre-announced
// shows in descending date order, which must never surface as recent.
func (n *Normalizer) recentShows(ctx context.Context, req *QueryRequest, column, value string) (models.Response, error) {
	keep := 0
	overfetch := 50
	if req.Limit != nil && *req.Limit != 0 {
		keep = *req.Limit
		overfetch = keep * 10
	}

	params := url.Values{}
	params.Set("order_by", "showdate")
	params.Set("direction", "desc")
	params.Set("limit", strconv.Itoa(overfetch))

	display := n.client.BuildURL("shows", nil, column, value, req.Format)

	env := n.client.Fetch(ctx, "shows", nil, column, value, req.Format, params)
	if env.Failed() {
		return errorResponse(display, env), nil
	}

	return models.Response{Data: n.dropFutureShows(env.Data, keep), URL: display}, nil
}

// dropFutureShows keeps rows whose showdate is today or earlier,
// skipping rows whose date does not parse. A keep of zero means no cap.
func (n *Normalizer) dropFutureShows(rows []Record, keep int) []Record {
	today := n.today()

	past := []Record{}
	for _, rec := range rows {
		d, err := time.Parse("2006-01-02", rec.Str("showdate"))
		if err != nil {
			continue
		}
		if d.After(today) {
			continue
		}
		past = append(past, rec)
		if keep > 0 && len(past) >= keep {
			break
		}
	}
	return past
}

func (n *Normalizer) today() time.Time {
	now := n.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// encodeValue percent-encodes a filter value for use as a path
// segment, with spaces as '+' the way the upstream expects.
func encodeValue(v string) string {
	if v == "" {
		return ""
	}
	return url.QueryEscape(v)
}

func errorResponse(displayURL string, env *Envelope) models.Response {
	return models.Response{
		Data:         env.Data,
		URL:          displayURL,
		Error:        env.Error,
		ErrorMessage: env.ErrorMessage,
	}
}
