package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kakmul/ufcserver/internal/ports"
)

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Telegram rejects messages longer than this many characters.
const maxMessageRunes = 4096

// Config selects the bot and chat receiving digests.
type Config struct {
	BotToken string
	ChatID   string
	APIBase  string
}

// Enabled reports whether both credentials are present.
func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. A nil client gets a
// short-timeout default.
func NewNotifier(cfg Config, client *http.Client) *Notifier {
	apiBase := strings.TrimSuffix(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Notifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  apiBase,
		client:   client,
	}
}

// PublishDigest posts a plain-text message to Telegram, splitting it when it
// exceeds the per-message limit.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	for _, chunk := range splitMessage(digest, maxMessageRunes) {
		if err := n.send(ctx, chunk); err != nil {
			return err
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
		return fmt.Errorf("telegram error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring line
// boundaries.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
