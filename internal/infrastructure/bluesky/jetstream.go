package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/source"
)

const postCollection = "app.bsky.feed.post"

// JetstreamSource samples live posts from Jetstream. A fetch reads until
// limit matching posts arrive or window elapses, whichever comes first.
type JetstreamSource struct {
	url    string
	query  string
	limit  int
	window time.Duration
	dialer *websocket.Dialer
	logger *slog.Logger
}

var _ source.Named = (*JetstreamSource)(nil)

// NewJetstreamSource matches create events whose text contains query
// (case-insensitive). An empty query matches everything.
func NewJetstreamSource(wsURL, query string, limit int, window time.Duration, logger *slog.Logger) *JetstreamSource {
	if limit <= 0 {
		limit = 25
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JetstreamSource{
		url:    wsURL,
		query:  strings.ToLower(strings.TrimSpace(query)),
		limit:  limit,
		window: window,
		dialer: websocket.DefaultDialer,
		logger: logger.With("component", "jetstream"),
	}
}

func (s *JetstreamSource) Name() string { return "jetstream" }

func (s *JetstreamSource) buildURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse jetstream url: %w", err)
	}
	q := u.Query()
	q.Add("wantedCollections", postCollection)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPosts returns whatever matched inside the window. Timing out with
// fewer than limit posts is not an error.
func (s *JetstreamSource) FetchPosts(ctx context.Context) ([]domain.RawPost, []string, error) {
	wsURL, err := s.buildURL()
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.window)
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial jetstream: %v", domain.ErrExternalService, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	// unblock ReadMessage when the caller cancels before the deadline
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	var (
		posts []domain.RawPost
		seen  int
	)
	for len(posts) < s.limit {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) || ctx.Err() != nil {
				break
			}
			if len(posts) > 0 {
				s.logger.Warn("jetstream read failed, returning partial batch", "error", err, "posts", len(posts))
				break
			}
			return nil, nil, fmt.Errorf("%w: read jetstream: %v", domain.ErrExternalService, err)
		}
		seen++

		post, ok, err := s.match(message)
		if err != nil {
			s.logger.Debug("skipping malformed event", "error", err)
			continue
		}
		if ok {
			posts = append(posts, post)
		}
	}

	s.logger.Info("jetstream sample complete", "events", seen, "matched", len(posts))
	return posts, source.FormatAll(posts), nil
}

func (s *JetstreamSource) match(message []byte) (domain.RawPost, bool, error) {
	var event jetstreamEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return domain.RawPost{}, false, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Kind != "commit" || event.Commit == nil {
		return domain.RawPost{}, false, nil
	}
	commit := event.Commit
	if commit.Operation != "create" || commit.Collection != postCollection || commit.Record == nil {
		return domain.RawPost{}, false, nil
	}
	if s.query != "" && !strings.Contains(strings.ToLower(commit.Record.Text), s.query) {
		return domain.RawPost{}, false, nil
	}

	return domain.RawPost{
		Text:      commit.Record.Text,
		Handle:    event.DID,
		LikeCount: 0,
		Timestamp: commit.Record.CreatedAt,
		URI:       fmt.Sprintf("at://%s/%s/%s", event.DID, commit.Collection, commit.RKey),
	}, true, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

type jetstreamCommit struct {
	Rev        string      `json:"rev"`
	Operation  string      `json:"operation"`
	Collection string      `json:"collection"`
	RKey       string      `json:"rkey"`
	Record     *postRecord `json:"record,omitempty"`
	CID        string      `json:"cid"`
}
