package bluesky

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/source"
)

// SearchSource fetches posts with app.bsky.feed.searchPosts.
type SearchSource struct {
	client      *Client
	handle      string
	appPassword string
	query       string
	limit       int
}

var _ source.Named = (*SearchSource)(nil)

// NewSearchSource logs in with handle/appPassword before each fetch when
// both are set; otherwise requests go out unauthenticated.
func NewSearchSource(client *Client, handle, appPassword, query string, limit int) *SearchSource {
	if limit <= 0 {
		limit = 25
	}
	return &SearchSource{
		client:      client,
		handle:      handle,
		appPassword: appPassword,
		query:       query,
		limit:       limit,
	}
}

func (s *SearchSource) Name() string { return "search" }

// FetchPosts returns raw posts in search order plus their formatted form.
func (s *SearchSource) FetchPosts(ctx context.Context) ([]domain.RawPost, []string, error) {
	if s.handle != "" && s.appPassword != "" {
		if err := s.client.Login(ctx, s.handle, s.appPassword); err != nil {
			return nil, nil, fmt.Errorf("%w: bluesky login: %v", domain.ErrExternalService, err)
		}
	}

	query := url.Values{}
	query.Set("q", s.query)
	query.Set("limit", strconv.Itoa(s.limit))

	var resp searchPostsResponse
	if err := s.client.get(ctx, "/xrpc/app.bsky.feed.searchPosts", query, &resp); err != nil {
		return nil, nil, fmt.Errorf("%w: search posts: %v", domain.ErrExternalService, err)
	}

	posts := make([]domain.RawPost, 0, len(resp.Posts))
	for _, view := range resp.Posts {
		posts = append(posts, domain.RawPost{
			Text:        view.Record.Text,
			Handle:      view.Author.Handle,
			DisplayName: view.Author.DisplayName,
			LikeCount:   view.LikeCount,
			Timestamp:   view.Record.CreatedAt,
			URI:         view.URI,
		})
	}
	return posts, source.FormatAll(posts), nil
}

type searchPostsResponse struct {
	Cursor string     `json:"cursor"`
	Posts  []postView `json:"posts"`
}

type postView struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Author struct {
		DID         string `json:"did"`
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Record    postRecord `json:"record"`
	LikeCount int        `json:"likeCount"`
	IndexedAt string     `json:"indexedAt"`
}

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Type      string   `json:"$type"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs"`
}
