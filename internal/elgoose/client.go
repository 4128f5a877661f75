package elgoose

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public ElGoose API root. No authentication and
// no documented rate limit.
const DefaultBaseURL = "https://elgoose.net/api/v2"

// rawTextLimit caps the diagnostic body snippet kept on failed fetches.
const rawTextLimit = 200

// Client issues GET requests against the ElGoose API and normalizes
// every outcome into an Envelope. It never returns a Go error for
// upstream failures; transport, status, and parse problems all become
// error envelopes so callers have a single shape to inspect.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// BuildURL constructs the endpoint URL without the query string:
// {base}/{method}[/{identifier}|/{column}/{value}].{fmt}. Identifier
// takes priority over column/value; the value segment is used as given,
// so pre-encoded values stay encoded.
func (c *Client) BuildURL(method string, identifier *int, column, value, format string) string {
	if format == "" {
		format = "json"
	}

	parts := []string{c.baseURL, method}
	switch {
	case identifier != nil:
		parts = append(parts, strconv.Itoa(*identifier))
	case column != "" && value != "":
		parts = append(parts, column+"/"+value)
	}

	return strings.Join(parts, "/") + "." + format
}

// Fetch performs exactly one GET and returns the normalized envelope.
// No retries, no caching. Extra query parameters are appended
// unfiltered; it is the caller's job to omit unset ones.
func (c *Client) Fetch(ctx context.Context, method string, identifier *int, column, value, format string, extra url.Values) *Envelope {
	target := c.BuildURL(method, identifier, column, value, format)
	if len(extra) > 0 {
		target += "?" + extra.Encode()
	}

	c.logger.Debug().Str("url", target).Msg("fetching from elgoose API")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errorEnvelope(1, fmt.Sprintf("request failed: %v", err), "")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errorEnvelope(1, fmt.Sprintf("request failed: %v", err), "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorEnvelope(1, fmt.Sprintf("request failed: %v", err), "")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("url", target).Msg("elgoose API returned non-2xx")
		return errorEnvelope(resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode), truncate(string(body), rawTextLimit))
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn().Str("url", target).Msg("elgoose API returned non-JSON body")
		return errorEnvelope(1, "Non-JSON response", truncate(string(body), rawTextLimit))
	}

	env := &Envelope{Body: payload}
	if raw, ok := payload["data"]; ok {
		// Upstream data is normally an array of row objects; anything
		// else is left for the Body fallback.
		_ = json.Unmarshal(raw, &env.Data)
	}

	return env
}

func errorEnvelope(code int, message, rawText string) *Envelope {
	return &Envelope{
		Error:        code,
		ErrorMessage: message,
		Data:         []Record{},
		RawText:      rawText,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
