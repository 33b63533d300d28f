package c8y

import (
	"context"
	"fmt"
	"net/http"
)

// CreateEvent attaches an event to a device.
//
// Returns the event with the backend-assigned id.
func (c *Client) CreateEvent(ctx context.Context, tenantID string, event Event) (Event, error) {
	if event.Source.ID == "" {
		return Event{}, fmt.Errorf("%w: event source is required", ErrInvalidInput)
	}
	if event.Type == "" || event.Time == "" {
		return Event{}, fmt.Errorf("%w: event type and time are required", ErrInvalidInput)
	}

	var created Event
	if err := c.doJSON(ctx, tenantID, http.MethodPost, "/event/events", event, &created); err != nil {
		return Event{}, err
	}
	return created, nil
}
