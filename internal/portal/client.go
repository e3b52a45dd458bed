package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"portalsync/internal/event"
)

// ErrNotAuthenticated is returned for any call attempted before a successful
// login.
var ErrNotAuthenticated = errors.New("portal session is not authenticated")

// APIError is the uniform failure for RPC calls: transport, status, parse and
// portal-reported errors all collapse into it so callers branch on one type.
type APIError struct {
	Method string
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("portal call %s failed: HTTP %d: %s", e.Method, e.Status, e.Reason)
	}
	return fmt.Sprintf("portal call %s failed: %s", e.Method, e.Reason)
}

// Client issues calendar RPC calls over an authenticated session.
type Client struct {
	session *Session
	log     zerolog.Logger
}

// NewClient wraps the session. It fails up front if the session never logged
// in, so pipeline stages cannot half-work against a dead session.
func NewClient(s *Session, log zerolog.Logger) (*Client, error) {
	if s == nil || !s.Authenticated() || s.Token() == "" {
		return nil, ErrNotAuthenticated
	}
	return &Client{
		session: s,
		log:     log.With().Str("component", "portal.client").Logger(),
	}, nil
}

// rpcCall is one element of the request envelope the portal expects.
type rpcCall struct {
	Index      int    `json:"index"`
	MethodName string `json:"methodname"`
	Args       any    `json:"args"`
}

// rpcResult is one element of the response envelope. The error field is
// loosely typed upstream: absent, boolean false, or a message.
type rpcResult struct {
	Error json.RawMessage `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func (r rpcResult) errMessage() string {
	if len(r.Error) == 0 {
		return ""
	}
	var b bool
	if err := json.Unmarshal(r.Error, &b); err == nil {
		if !b {
			return ""
		}
		return "portal reported an error"
	}
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}
	return string(r.Error)
}

// call POSTs the single-call envelope and unwraps the first response element.
func (c *Client) call(ctx context.Context, method string, args any) (json.RawMessage, error) {
	if !c.session.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	envelope := []rpcCall{{Index: 0, MethodName: method, Args: args}}

	resp, err := c.session.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetQueryParam(c.session.cfg.SessionCookie, c.session.Token()).
		SetBody(envelope).
		Post(c.session.cfg.APIBase)
	if err != nil {
		return nil, &APIError{Method: method, Reason: err.Error()}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{Method: method, Status: resp.StatusCode(), Reason: truncate(resp.String(), 200)}
	}

	var results []rpcResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, &APIError{Method: method, Reason: "invalid JSON response: " + truncate(resp.String(), 200)}
	}
	if len(results) == 0 {
		return nil, &APIError{Method: method, Reason: "empty response envelope"}
	}
	if msg := results[0].errMessage(); msg != "" {
		return nil, &APIError{Method: method, Reason: msg}
	}
	return results[0].Data, nil
}

func (c *Client) callEvents(ctx context.Context, method string, args any) ([]event.Event, error) {
	data, err := c.call(ctx, method, args)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		// Some endpoints answer with a lone record instead of an array.
		var single event.Event
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, &APIError{Method: method, Reason: "unexpected data shape: " + err.Error()}
		}
		events = []event.Event{single}
	}
	return events, nil
}

// FetchDayEvents returns the panel events for the day containing ts.
func (c *Client) FetchDayEvents(ctx context.Context, ts time.Time) ([]event.Event, error) {
	return c.callEvents(ctx, "local_calendar_get_calendar_pannel_events", map[string]any{
		"time_search":   ts.Unix(),
		"filter_id":     nil,
		"events_filter": []any{},
	})
}

// FetchRangeEvents returns the events whose window overlaps [open, close].
func (c *Client) FetchRangeEvents(ctx context.Context, open, close time.Time) ([]event.Event, error) {
	return c.callEvents(ctx, "local_calendar_get_calendar_events", map[string]any{
		"time_open":     open.Unix(),
		"time_close":    close.Unix(),
		"filter_id":     nil,
		"events_filter": []any{},
	})
}

// FetchEventDetail returns the full record for one event. An empty module
// falls back to the portal's default content module.
func (c *Client) FetchEventDetail(ctx context.Context, eventType, eventID, module string) (event.Event, error) {
	if module == "" {
		module = event.DefaultModule
	}

	data, err := c.call(ctx, "local_calendar_get_calendar_event", map[string]any{
		"event_type":  eventType,
		"event_id":    eventID,
		"module_name": module,
	})
	if err != nil {
		return event.Event{}, err
	}

	var detail event.Event
	if len(data) > 0 && string(data) != "null" {
		// The detail endpoint returns either the record or a one-element array.
		if err := json.Unmarshal(data, &detail); err != nil {
			var list []event.Event
			if err2 := json.Unmarshal(data, &list); err2 != nil || len(list) == 0 {
				return event.Event{}, &APIError{Method: "local_calendar_get_calendar_event", Reason: "unexpected data shape: " + err.Error()}
			}
			detail = list[0]
		}
	}
	return detail, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
