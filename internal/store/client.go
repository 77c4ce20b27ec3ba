// Package store provides the REST client for the directory/booking
// store. It covers exactly the operations the coordinator and identity
// resolver consume; the store itself is an external collaborator.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"counselchat/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Client talks to the directory/booking store over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a store client for the given base URL. A nil
// logger is replaced with a no-op logger.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// SaveUser upserts a directory record, idempotent by UUID.
func (c *Client) SaveUser(ctx context.Context, record *types.UserRecord) error {
	return c.write(ctx, "save user", http.MethodPost, "/users/save", record)
}

// ListCounsellors returns every registered counsellor.
func (c *Client) ListCounsellors(ctx context.Context) ([]types.Counsellor, error) {
	var counsellors []types.Counsellor
	if err := c.readJSON(ctx, "list counsellors", "/users/counsellors", &counsellors); err != nil {
		return nil, err
	}
	return counsellors, nil
}

// SendRequest creates a PENDING booking request.
func (c *Client) SendRequest(ctx context.Context, req *types.BookingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.write(ctx, "send booking request", http.MethodPost, "/messages/sendRequest", req)
}

// ListRequests returns all booking requests; callers filter PENDING.
func (c *Client) ListRequests(ctx context.Context) ([]types.BookingRequest, error) {
	var requests []types.BookingRequest
	if err := c.readJSON(ctx, "list booking requests", "/messages/getRequests", &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// CreateAppointment persists a confirmed appointment slot.
func (c *Client) CreateAppointment(ctx context.Context, appt *types.Appointment) error {
	if err := appt.Validate(); err != nil {
		return err
	}
	return c.write(ctx, "create appointment", http.MethodPost, "/bookings/create", appt)
}

// UpdateBookingStatus flips the request addressed by the pair to
// CONFIRMED. The pair travels as query parameters in chat-session
// order: senderID is the counsellor, receiverID the customer.
func (c *Client) UpdateBookingStatus(ctx context.Context, senderID, receiverID string) error {
	query := url.Values{}
	query.Set("senderId", senderID)
	query.Set("receiverId", receiverID)
	path := "/messages/updateBookingStatus?" + query.Encode()
	return c.write(ctx, "update booking status", http.MethodPut, path, nil)
}

// ListCounsellorAppointments returns confirmed appointments for a
// counsellor UUID.
func (c *Client) ListCounsellorAppointments(ctx context.Context, uuid string) ([]types.Appointment, error) {
	var appts []types.Appointment
	if err := c.readJSON(ctx, "list counsellor appointments", "/bookings/counsellor/"+uuid, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// ListCustomerAppointments returns confirmed appointments for a
// customer UUID.
func (c *Client) ListCustomerAppointments(ctx context.Context, uuid string) ([]types.Appointment, error) {
	var appts []types.Appointment
	if err := c.readJSON(ctx, "list customer appointments", "/bookings/customer/"+uuid, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// write issues a JSON-bodied mutating call and checks only the status;
// the store answers writes with plain text.
func (c *Client) write(ctx context.Context, op, method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.requestError(op, resp)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// readJSON issues a GET and decodes a JSON response body.
func (c *Client) readJSON(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.requestError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) requestError(op string, resp *http.Response) error {
	// The store reports failures as plain text bodies.
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := &RequestError{Operation: op, StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	c.logger.Warn("store call failed",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode))
	return err
}
