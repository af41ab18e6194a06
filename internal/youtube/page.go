package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// MaxPageSize is the largest maxResults the Data API accepts for list calls.
const MaxPageSize = 50

// PageRequest describes one list call: which resource, with which fixed
// parameters, and where in the collection to start. Values are treated as
// immutable; the With methods return modified copies.
type PageRequest struct {
	Resource  string     // list endpoint, e.g. "playlistItems"
	Params    url.Values // fixed query parameters (part, playlistId, ...)
	PageSize  int        // maxResults hint; 0 leaves the server default
	PageToken string     // continuation token, empty for the first page

	// Required names top-level fields every item must carry. An item
	// missing one makes the page malformed.
	Required []string
}

// WithPageToken returns a copy of r positioned at token.
func (r PageRequest) WithPageToken(token string) PageRequest {
	next := r.clone()
	next.PageToken = token

	return next
}

// WithPageSize returns a copy of r with a different page-size hint.
func (r PageRequest) WithPageSize(n int) PageRequest {
	next := r.clone()
	next.PageSize = n

	return next
}

func (r PageRequest) clone() PageRequest {
	next := r
	next.Params = cloneValues(r.Params)
	next.Required = slices.Clone(r.Required)

	return next
}

// cloneValues deep-copies query values so copies never share backing arrays.
func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}

	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = slices.Clone(vals)
	}

	return out
}

// path renders the request as an API path with query string.
func (r PageRequest) path() string {
	q := cloneValues(r.Params)
	if q == nil {
		q = url.Values{}
	}

	if r.PageSize > 0 {
		q.Set("maxResults", strconv.Itoa(min(r.PageSize, MaxPageSize)))
	}

	if r.PageToken != "" {
		q.Set("pageToken", r.PageToken)
	}

	if len(q) == 0 {
		return "/" + r.Resource
	}

	return "/" + r.Resource + "?" + q.Encode()
}

// Page is one decoded list response. An empty NextPageToken is the only
// signal that the collection is exhausted.
type Page struct {
	Items          []Item
	NextPageToken  string
	TotalResults   int
	ResultsPerPage int
}

// Item is one resource from a list response. ID is normalized: for search
// results, whose id is an object, it holds the video, channel or playlist ID.
type Item struct {
	Kind string
	ETag string
	ID   string
	Raw  json.RawMessage
}

// Decode unmarshals the full item JSON into v.
func (it Item) Decode(v any) error {
	if err := json.Unmarshal(it.Raw, v); err != nil {
		return fmt.Errorf("youtube: decoding %s item %s: %w", it.Kind, it.ID, err)
	}

	return nil
}

// listResponse mirrors the common list envelope of the Data API. Items is a
// pointer so that an absent field can be told apart from an empty page.
type listResponse struct {
	Kind          string             `json:"kind"`
	NextPageToken string             `json:"nextPageToken"`
	Items         *[]json.RawMessage `json:"items"`
	PageInfo      struct {
		TotalResults   int `json:"totalResults"`
		ResultsPerPage int `json:"resultsPerPage"`
	} `json:"pageInfo"`
}

// resourceID is the object form of "id" used by search results.
type resourceID struct {
	Kind       string `json:"kind"`
	VideoID    string `json:"videoId"`
	ChannelID  string `json:"channelId"`
	PlaylistID string `json:"playlistId"`
}

// ListPage fetches exactly one page of a list endpoint.
func (c *Client) ListPage(ctx context.Context, req PageRequest) (*Page, error) {
	if req.Resource == "" || strings.ContainsAny(req.Resource, "/?#") {
		return nil, fmt.Errorf("youtube: invalid resource name %q", req.Resource)
	}

	c.logger.Debug("fetching page",
		slog.String("resource", req.Resource),
		slog.Int("page_size", req.PageSize),
		slog.Bool("continuation", req.PageToken != ""),
	)

	resp, err := c.Do(ctx, http.MethodGet, req.path(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %w", ErrMalformedPage, req.Resource, err)
	}

	page, err := decodePage(&lr, req.Required)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Resource, err)
	}

	c.logger.Debug("fetched page",
		slog.String("resource", req.Resource),
		slog.Int("count", len(page.Items)),
		slog.Bool("has_next", page.NextPageToken != ""),
	)

	return page, nil
}

// decodePage validates the envelope and normalizes each item.
func decodePage(lr *listResponse, required []string) (*Page, error) {
	if lr.Items == nil {
		return nil, fmt.Errorf("%w: response has no items field", ErrMalformedPage)
	}

	page := &Page{
		Items:          make([]Item, 0, len(*lr.Items)),
		NextPageToken:  lr.NextPageToken,
		TotalResults:   lr.PageInfo.TotalResults,
		ResultsPerPage: lr.PageInfo.ResultsPerPage,
	}

	for i, raw := range *lr.Items {
		item, err := decodeItem(raw, required)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrMalformedPage, i, err)
		}

		page.Items = append(page.Items, item)
	}

	return page, nil
}

// decodeItem checks the item's mandatory fields and extracts its identity.
func decodeItem(raw json.RawMessage, required []string) (Item, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Item{}, fmt.Errorf("not a JSON object: %w", err)
	}

	for _, name := range append([]string{"kind", "id"}, required...) {
		if v, ok := fields[name]; !ok || string(v) == "null" {
			return Item{}, fmt.Errorf("missing field %q", name)
		}
	}

	item := Item{Raw: raw}

	if err := json.Unmarshal(fields["kind"], &item.Kind); err != nil {
		return Item{}, fmt.Errorf("field \"kind\": %w", err)
	}

	if etag, ok := fields["etag"]; ok {
		_ = json.Unmarshal(etag, &item.ETag)
	}

	id, err := decodeID(fields["id"])
	if err != nil {
		return Item{}, err
	}

	item.ID = id

	return item, nil
}

// decodeID accepts either a plain string ID or a search-result resource ID.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var rid resourceID
	if err := json.Unmarshal(raw, &rid); err != nil {
		return "", fmt.Errorf("field \"id\": %w", err)
	}

	switch {
	case rid.VideoID != "":
		return rid.VideoID, nil
	case rid.ChannelID != "":
		return rid.ChannelID, nil
	case rid.PlaylistID != "":
		return rid.PlaylistID, nil
	default:
		return "", fmt.Errorf("field \"id\" of kind %q carries no identifier", rid.Kind)
	}
}
