package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const (
	colorGreen  = 0x2ECC71 // all rows saved
	colorOrange = 0xE67E22 // some rows failed
	colorGrey   = 0x95A5A6 // no listings

	// Discord allows max 10 embeds per message.
	maxEmbeds = 10
)

// DiscordNotifier implements Notifier via Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notify posts the summary header followed by one embed per top listing.
func (d *DiscordNotifier) Notify(ctx context.Context, s *Summary) error {
	embeds := make([]discordEmbed, 0, min(len(s.Top)+1, maxEmbeds))
	embeds = append(embeds, summaryEmbed(s))

	for i := range s.Top {
		if len(embeds) == maxEmbeds {
			break
		}
		embeds = append(embeds, listingEmbed(&s.Top[i]))
	}

	return d.post(ctx, discordWebhookPayload{Embeds: embeds})
}

func summaryEmbed(s *Summary) discordEmbed {
	color := colorGreen
	switch {
	case s.Count == 0:
		color = colorGrey
	case s.Failed > 0:
		color = colorOrange
	}

	return discordEmbed{
		Title: fmt.Sprintf("Search results: %s", s.Query),
		Color: color,
		Fields: []discordEmbedField{
			{Name: "Listings", Value: fmt.Sprintf("%d", s.Count), Inline: true},
			{Name: "Saved", Value: fmt.Sprintf("%d", s.Saved), Inline: true},
			{Name: "Failed", Value: fmt.Sprintf("%d", s.Failed), Inline: true},
			{Name: "Sort", Value: string(s.Mode), Inline: true},
			{Name: "Took", Value: s.Duration.Round(time.Millisecond).String(), Inline: true},
		},
	}
}

func listingEmbed(l *domain.Listing) discordEmbed {
	rating := "-"
	if l.Rating != nil {
		rating = fmt.Sprintf("%.1f", *l.Rating)
	}

	return discordEmbed{
		Title: fmt.Sprintf("#%d %s", l.Ranking, l.Title),
		URL:   l.Link,
		Color: colorGreen,
		Fields: []discordEmbedField{
			{Name: "Price", Value: fmt.Sprintf("%.2f", l.Price), Inline: true},
			{Name: "Rating", Value: rating, Inline: true},
			{Name: "Source", Value: l.Source, Inline: true},
		},
	}
}

func (d *DiscordNotifier) post(ctx context.Context, payload discordWebhookPayload) (err error) {
	start := time.Now()
	defer func() {
		metrics.NotificationDuration.Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.NotificationsTotal.WithLabelValues(result).Inc()
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		d.webhookURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited (429)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
