package elgoose

import "encoding/json"

// Record is one row of open-schema data returned by the upstream API.
// Field sets vary per endpoint (shows carry showdate/venuename/city,
// setlists add songname, albums carry album_url/position/tracktime, ...),
// so fields are read defensively rather than bound to a struct.
type Record map[string]interface{}

// Str returns the named field as a string, or "" when the field is
// missing, null, or not a string.
func (r Record) Str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Envelope is the uniform wrapper around every Gateway response.
// Absence of Error signals a successful 2xx JSON response; a non-zero
// Error means either a transport/status failure or an unparseable body.
// Both are represented the same way so callers never branch on
// error-value vs panic.
type Envelope struct {
	Error        int      `json:"error,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Data         []Record `json:"data"`
	RawText      string   `json:"raw_text,omitempty"`

	// Body holds the full decoded upstream payload on success, so the
	// generic fallback can return payloads that lack a "data" array.
	Body map[string]json.RawMessage `json:"-"`
}

// Failed reports whether this envelope represents an upstream failure.
func (e *Envelope) Failed() bool {
	return e.Error != 0
}

// QueryRequest is the loosely-typed parameter set an LLM tool call
// supplies. Pointer fields distinguish "absent" from zero values, which
// matters for limit (no cap vs cap of 0) and identifier (row 0 exists).
type QueryRequest struct {
	Method     string `json:"method"`
	Identifier *int   `json:"identifier,omitempty"`
	Column     string `json:"column,omitempty"`
	Value      string `json:"value,omitempty"`
	OrderBy    string `json:"order_by,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Limit      *int   `json:"limit,omitempty"`
	Artist     *int   `json:"artist,omitempty"`
	ShowYear   *int   `json:"showyear,omitempty"`
	Format     string `json:"fmt,omitempty"`
}

// Methods the upstream API exposes. The tool schema advertises this set
// to the model; the Normalizer itself passes unknown methods through to
// the Gateway unchanged.
var KnownMethods = []string{
	"latest", "shows", "setlists", "songs", "venues", "jamcharts",
	"albums", "metadata", "links", "uploads", "appearances", "list",
}

// Columns accepted by the list endpoint family.
var ListColumns = []string{"year", "country", "state", "city", "venue", "month", "day"}

func decodeRaw(raw json.RawMessage) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func decodeBody(body map[string]json.RawMessage) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	for k, raw := range body {
		out[k] = decodeRaw(raw)
	}
	return out
}
