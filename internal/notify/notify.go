// Package notify delivers event announcements to a webhook sink.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"portalsync/internal/config"
	"portalsync/internal/event"
)

// Announcement is the delivery receipt for a posted event, persisted back to
// the store so re-runs never announce the same event twice.
type Announcement struct {
	Channel   string
	MessageID string
	SentAt    time.Time
}

// Sink receives pipeline notifications. The engine only depends on this
// interface; tests swap in a recorder.
type Sink interface {
	// AnnounceEvent posts a newly synced event and returns the receipt.
	AnnounceEvent(ctx context.Context, ev event.Event) (Announcement, error)
	// AnnounceExpiry posts an expiry notice for a previously announced event.
	AnnounceExpiry(ctx context.Context, ev event.Event) error
	// AuthFailure signals the operator channel that a sync run could not log in.
	AuthFailure(ctx context.Context, credentialsRejected bool) error
}

// payload is the webhook wire format, one kind per notification type.
type payload struct {
	Kind    string       `json:"kind"`
	Channel string       `json:"channel,omitempty"`
	Event   *event.Event `json:"event,omitempty"`
	Message string       `json:"message,omitempty"`
}

// receipt is what the webhook answers with for announcements.
type receipt struct {
	MessageID string `json:"message_id"`
	Channel   string `json:"channel"`
}

// WebhookSink posts JSON notifications to a configured webhook URL.
type WebhookSink struct {
	cfg    config.NotifyConfig
	client *resty.Client
	log    zerolog.Logger
}

// NewWebhookSink builds the sink. An empty webhook URL yields a sink whose
// calls succeed without doing anything, so sync runs work unconfigured.
func NewWebhookSink(cfg config.NotifyConfig, log zerolog.Logger) *WebhookSink {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &WebhookSink{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

func (s *WebhookSink) post(ctx context.Context, p payload) (*resty.Response, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(p).
		Post(s.cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("post %s notification: %w", p.Kind, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("post %s notification: webhook answered %d", p.Kind, resp.StatusCode())
	}
	return resp, nil
}

// AnnounceEvent posts the event to the announcement channel.
func (s *WebhookSink) AnnounceEvent(ctx context.Context, ev event.Event) (Announcement, error) {
	if s.cfg.WebhookURL == "" {
		s.log.Debug().Str("event_id", ev.ID).Msg("no webhook configured, skipping announce")
		return Announcement{}, nil
	}

	resp, err := s.post(ctx, payload{
		Kind:    "new_event",
		Channel: s.cfg.Channel,
		Event:   &ev,
	})
	if err != nil {
		return Announcement{}, err
	}

	var rec receipt
	// A sink that answers 204 or a non-JSON body still counts as delivered.
	if resp.StatusCode() != http.StatusNoContent {
		_ = json.Unmarshal(resp.Body(), &rec)
	}
	if rec.Channel == "" {
		rec.Channel = s.cfg.Channel
	}

	s.log.Info().Str("event_id", ev.ID).Str("channel", rec.Channel).Msg("event announced")
	return Announcement{Channel: rec.Channel, MessageID: rec.MessageID, SentAt: time.Now()}, nil
}

// AnnounceExpiry posts an expiry notice for the event.
func (s *WebhookSink) AnnounceExpiry(ctx context.Context, ev event.Event) error {
	if s.cfg.WebhookURL == "" {
		return nil
	}

	_, err := s.post(ctx, payload{
		Kind:    "expired_event",
		Channel: s.cfg.Channel,
		Event:   &ev,
	})
	if err == nil {
		s.log.Info().Str("event_id", ev.ID).Msg("expiry announced")
	}
	return err
}

// AuthFailure posts an operator alert to the monitor channel.
func (s *WebhookSink) AuthFailure(ctx context.Context, credentialsRejected bool) error {
	if s.cfg.WebhookURL == "" {
		return nil
	}

	msg := "portal login failed"
	if credentialsRejected {
		msg = "portal rejected the configured credentials"
	}

	_, err := s.post(ctx, payload{
		Kind:    "auth_failure",
		Channel: s.cfg.MonitorChannel,
		Message: msg,
	})
	return err
}
