package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrEmptyTicket is returned when the ticket endpoint answers without a ticket.
var ErrEmptyTicket = errors.New("empty stream ticket")

// StreamTicket obtains a one-time stream access ticket.
func (c *Client) StreamTicket(ctx context.Context) (string, error) {
	body, err := c.Post(ctx, c.ticketPath, "", nil)
	if err != nil {
		return "", fmt.Errorf("stream ticket: %w", err)
	}

	var resp TicketResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal ticket: %w", err)
	}
	if resp.SSETicket == "" {
		return "", ErrEmptyTicket
	}

	return resp.SSETicket, nil
}

// StreamURL appends ticket to base as the "ticket" query parameter,
// keeping any query already present.
func StreamURL(base, ticket string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("ticket", ticket)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
