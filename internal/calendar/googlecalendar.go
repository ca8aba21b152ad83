package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// maxResults is the page size of a list call. Only the first page is read,
// so windows holding more events are truncated.
const maxResults = 250

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	return NewClientWithOptions(ctx, option.WithHTTPClient(httpClient))
}

// NewClientWithOptions creates a client from raw API options.
func NewClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// GetEvents retrieves events from a calendar within the specified time window.
// Recurring events are expanded and results come back ordered by start time.
func (c *Client) GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	eventsList, err := c.service.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true). // Expand recurring events
		OrderBy("startTime").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return eventsList.Items, nil
}

// InsertEvent inserts a new event into a calendar and returns it as created.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return created, nil
}

// Factory builds clients for the current session. A bearer token is used
// when the session holds one; otherwise requests carry the API key and are
// read-only.
type Factory struct {
	apiKey string
	opts   []option.ClientOption
}

// NewFactory creates a Factory. Extra options apply to every client.
func NewFactory(apiKey string, opts ...option.ClientOption) *Factory {
	return &Factory{apiKey: apiKey, opts: opts}
}

// ForToken returns a client authorized by token, or by the API key when
// token is nil or empty.
func (f *Factory) ForToken(ctx context.Context, token *oauth2.Token) (CalendarClient, error) {
	opts := append([]option.ClientOption{}, f.opts...)
	switch {
	case token != nil && token.AccessToken != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	case f.apiKey != "":
		opts = append(opts, option.WithAPIKey(f.apiKey))
	default:
		return nil, ErrNotConfigured
	}
	return NewClientWithOptions(ctx, opts...)
}
