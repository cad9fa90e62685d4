package domain

import (
	"fmt"
	"strings"
	"time"
)

// RawPost is a post record as handed over by a post source, before any
// parsing or classification happens.
type RawPost struct {
	Text        string `json:"text" validate:"required"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	LikeCount   int    `json:"like_count" validate:"min=0"`
	Timestamp   string `json:"timestamp" validate:"required"`
	URI         string `json:"uri"`
}

// Post is a persisted social-media post.
type Post struct {
	ID          int64
	Handle      string
	DisplayName string
	Text        string
	Timestamp   time.Time
	LikeCount   int
	URI         string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without a zone offset.
// Zone-less values are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrValidation, value)
}

// ToPost converts the raw record into an unsaved Post, filling the same
// placeholders the upstream search client used for missing fields.
func (r RawPost) ToPost() (Post, error) {
	if strings.TrimSpace(r.Text) == "" {
		return Post{}, fmt.Errorf("%w: post text is empty", ErrValidation)
	}
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return Post{}, err
	}

	return Post{
		Handle:      orDefault(r.Handle, "unknown"),
		DisplayName: orDefault(r.DisplayName, "Unknown"),
		Text:        r.Text,
		Timestamp:   ts,
		LikeCount:   r.LikeCount,
		URI:         orDefault(r.URI, "unknown"),
	}, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
