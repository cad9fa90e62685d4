package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SkeetShelf/internal/domain"
	"SkeetShelf/internal/metrics"
	"SkeetShelf/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageRunes is the bot API limit for a single text message.
	maxMessageRunes = 4096
)

// Notifier sends run digests to a Telegram chat via the bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimSuffix(base, "/")
	return n
}

// PublishDigest delivers the digest as one or more plain-text messages.
// Book titles are user content, so no parse_mode is set. Delivery stops at
// the first rejected chunk.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("%w: telegram notifier misconfigured", domain.ErrValidation)
	}

	for i, chunk := range splitMessage(digest, maxMessageRunes) {
		err := n.send(ctx, chunk)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.DigestDeliveries.WithLabelValues(status).Inc()
		if err != nil {
			return fmt.Errorf("%w: telegram chunk %d: %v", domain.ErrExternalService, i+1, err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// splitMessage breaks text on line boundaries into pieces of at most limit
// runes. A single line longer than limit is cut mid-line.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.TrimRight(string(current), "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		if len(current)+len(r) > limit {
			flush()
		}
		for len(r) > limit {
			chunks = append(chunks, string(r[:limit]))
			r = r[limit:]
		}
		current = append(current, r...)
	}
	flush()
	return chunks
}
