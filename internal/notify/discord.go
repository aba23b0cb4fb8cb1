package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DiscordWebhook posts notifications as messages to a Discord webhook URL.
// The http.Client is injected so tests can point it at a local server.
type DiscordWebhook struct {
	url    string
	client *http.Client
}

type discordPayload struct {
	Content string `json:"content"`
}

// Discord rejects content over 2000 characters.
const discordContentLimit = 2000

func NewDiscordWebhook(url string, client *http.Client) *DiscordWebhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordWebhook{url: url, client: client}
}

func (n *DiscordWebhook) Notify(ctx context.Context, message string) error {
	if len(message) > discordContentLimit {
		message = message[:discordContentLimit-1] + "…"
	}
	body, err := json.Marshal(discordPayload{Content: message})
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord POST: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; cap at 4 KiB.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord POST: unexpected status %d", resp.StatusCode)
	}
	return nil
}
