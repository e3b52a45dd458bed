package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalsync/internal/config"
	"portalsync/internal/event"
)

func sinkFor(t *testing.T, url string) *WebhookSink {
	return NewWebhookSink(config.NotifyConfig{
		WebhookURL:     url,
		Channel:        "eventos",
		MonitorChannel: "ops",
		Timeout:        2 * time.Second,
	}, zerolog.Nop())
}

func TestAnnounceEventPostsAndReturnsReceipt(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(receipt{MessageID: "msg-9", Channel: "eventos"})
	}))
	defer srv.Close()

	ann, err := sinkFor(t, srv.URL).AnnounceEvent(context.Background(), event.Event{ID: "e1", Title: "aula"})
	require.NoError(t, err)

	assert.Equal(t, "new_event", got.Kind)
	assert.Equal(t, "eventos", got.Channel)
	require.NotNil(t, got.Event)
	assert.Equal(t, "e1", got.Event.ID)

	assert.Equal(t, "msg-9", ann.MessageID)
	assert.Equal(t, "eventos", ann.Channel)
	assert.False(t, ann.SentAt.IsZero())
}

func TestAnnounceEventAcceptsBodylessAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ann, err := sinkFor(t, srv.URL).AnnounceEvent(context.Background(), event.Event{ID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, "eventos", ann.Channel)
	assert.Empty(t, ann.MessageID)
}

func TestAnnounceEventWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := sinkFor(t, srv.URL).AnnounceEvent(context.Background(), event.Event{ID: "e1"})
	assert.Error(t, err)
}

func TestUnconfiguredSinkIsNoOp(t *testing.T) {
	s := sinkFor(t, "")

	_, err := s.AnnounceEvent(context.Background(), event.Event{ID: "e1"})
	assert.NoError(t, err)
	assert.NoError(t, s.AnnounceExpiry(context.Background(), event.Event{ID: "e1"}))
	assert.NoError(t, s.AuthFailure(context.Background(), true))
}

func TestAnnounceExpiry(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	require.NoError(t, sinkFor(t, srv.URL).AnnounceExpiry(context.Background(), event.Event{ID: "e2"}))
	assert.Equal(t, "expired_event", got.Kind)
	assert.Equal(t, "e2", got.Event.ID)
}

func TestAuthFailureUsesMonitorChannel(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	require.NoError(t, sinkFor(t, srv.URL).AuthFailure(context.Background(), true))
	assert.Equal(t, "auth_failure", got.Kind)
	assert.Equal(t, "ops", got.Channel)
	assert.Contains(t, got.Message, "rejected")
	assert.Nil(t, got.Event)
}
