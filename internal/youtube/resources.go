package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// defaultPageSize asks for full pages; the fetcher shrinks it near a limit.
const defaultPageSize = MaxPageSize

// Part selections used by the list helpers.
const (
	partSnippet        = "snippet"
	partSnippetDetails = "snippet,contentDetails"
)

func listRequest(resource string, params url.Values, required ...string) PageRequest {
	return PageRequest{
		Resource: resource,
		Params:   params,
		PageSize: defaultPageSize,
		Required: required,
	}
}

// MyPlaylists lists the authenticated user's playlists.
func MyPlaylists() PageRequest {
	return listRequest("playlists", url.Values{
		"part": {partSnippetDetails},
		"mine": {"true"},
	}, partSnippet)
}

// ChannelPlaylists lists the public playlists of a channel.
func ChannelPlaylists(channelID string) PageRequest {
	return listRequest("playlists", url.Values{
		"part":      {partSnippetDetails},
		"channelId": {channelID},
	}, partSnippet)
}

// PlaylistItems lists the videos of a playlist in playlist order.
func PlaylistItems(playlistID string) PageRequest {
	return listRequest("playlistItems", url.Values{
		"part":       {partSnippetDetails},
		"playlistId": {playlistID},
	}, partSnippet)
}

// MySubscriptions lists the channels the authenticated user subscribes to.
func MySubscriptions() PageRequest {
	return listRequest("subscriptions", url.Values{
		"part": {partSnippet},
		"mine": {"true"},
	}, partSnippet)
}

// ChannelSubscriptions lists the public subscriptions of a channel.
func ChannelSubscriptions(channelID string) PageRequest {
	return listRequest("subscriptions", url.Values{
		"part":      {partSnippet},
		"channelId": {channelID},
	}, partSnippet)
}

// SearchVideos searches videos. order is one of the API's search orders
// ("relevance", "date", "viewCount", ...); empty means relevance.
func SearchVideos(query, order string) PageRequest {
	params := url.Values{
		"part": {partSnippet},
		"type": {"video"},
		"q":    {query},
	}

	if order != "" {
		params.Set("order", order)
	}

	return listRequest("search", params, partSnippet)
}

// CommentThreads lists top-level comment threads of a video.
func CommentThreads(videoID string) PageRequest {
	return listRequest("commentThreads", url.Values{
		"part":       {partSnippet},
		"videoId":    {videoID},
		"textFormat": {"plainText"},
	}, partSnippet)
}

// CommentReplies lists replies to a top-level comment.
func CommentReplies(parentID string) PageRequest {
	return listRequest("comments", url.Values{
		"part":       {partSnippet},
		"parentId":   {parentID},
		"textFormat": {"plainText"},
	}, partSnippet)
}

// snippet covers the snippet fields shared by the listed resource kinds.
type snippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	ResourceID   *struct {
		VideoID   string `json:"videoId"`
		ChannelID string `json:"channelId"`
	} `json:"resourceId"`

	// Comment threads nest the comment; comments carry the text directly.
	TopLevelComment *struct {
		Snippet commentSnippet `json:"snippet"`
	} `json:"topLevelComment"`
	commentSnippet
}

type commentSnippet struct {
	AuthorDisplayName string `json:"authorDisplayName"`
	TextDisplay       string `json:"textDisplay"`
}

// Summary is a display-oriented view of a listed item.
type Summary struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	TargetID    string    `json:"target_id,omitempty"` // video or channel a playlist item / subscription points at
	Title       string    `json:"title"`
	Channel     string    `json:"channel,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// Summarize extracts a Summary from an item's snippet.
func Summarize(it Item) (Summary, error) {
	var wrapper struct {
		Snippet snippet `json:"snippet"`
	}

	if err := it.Decode(&wrapper); err != nil {
		return Summary{}, err
	}

	sn := wrapper.Snippet
	s := Summary{
		Kind:    it.Kind,
		ID:      it.ID,
		Title:   sn.Title,
		Channel: sn.ChannelTitle,
	}

	if sn.ResourceID != nil {
		s.TargetID = sn.ResourceID.VideoID
		if s.TargetID == "" {
			s.TargetID = sn.ResourceID.ChannelID
		}
	}

	comment := sn.commentSnippet
	if sn.TopLevelComment != nil {
		comment = sn.TopLevelComment.Snippet
	}

	if s.Title == "" && comment.TextDisplay != "" {
		s.Title = comment.TextDisplay
		s.Channel = comment.AuthorDisplayName
	}

	if sn.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
			s.PublishedAt = t
		}
	}

	return s, nil
}

// Channel is the authenticated user's channel identity.
type Channel struct {
	ID    string
	Title string
}

// MyChannel fetches the authenticated user's channel. It doubles as a cheap
// authorization probe: API errors (4xx) come back as *APIError, transport
// failures as *TransportError, so IsTransient tells the two apart.
func (c *Client) MyChannel(ctx context.Context) (*Channel, error) {
	c.logger.Info("fetching own channel")

	page, err := c.ListPage(ctx, listRequest("channels", url.Values{
		"part": {partSnippet},
		"mine": {"true"},
	}, partSnippet))
	if err != nil {
		return nil, err
	}

	if len(page.Items) == 0 {
		return nil, fmt.Errorf("%w: account has no YouTube channel", ErrNotFound)
	}

	s, err := Summarize(page.Items[0])
	if err != nil {
		return nil, err
	}

	c.logger.Debug("own channel resolved", slog.String("channel_id", s.ID))

	return &Channel{ID: s.ID, Title: s.Title}, nil
}
