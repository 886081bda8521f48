// Package calcom is a lightweight REST client for the Cal.com v2 bookings
// API, used when an organization delegates scheduling to an external
// calendar instead of the internal booking table.
package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voxdesk/scheduling/pkg/logging"
)

const (
	defaultBaseURL = "https://api.cal.com/v2"
	defaultTimeout = 20 * time.Second
)

// ErrSlotUnavailable is returned when Cal.com rejects a booking because the
// slot was taken through another channel.
var ErrSlotUnavailable = errors.New("calcom: slot no longer available")

// Client talks to the Cal.com API with one organization's credentials.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a Cal.com client. baseURL may be empty for the default
// endpoint; timeout <= 0 uses the default.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CreateBooking creates a booking on Cal.com. Slot conflicts surface as
// ErrSlotUnavailable so callers can distinguish them from outages.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	eventTypeID, err := strconv.ParseInt(strings.TrimSpace(req.EventTypeID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("calcom: bad event type id %q: %w", req.EventTypeID, err)
	}
	payload := createBookingPayload{
		EventTypeID: eventTypeID,
		Start:       req.Start.UTC().Format(time.RFC3339),
		LengthInMin: req.DurationMinutes,
		Attendee: attendeePayload{
			Name:        req.AttendeeName,
			Email:       req.AttendeeEmail,
			PhoneNumber: req.AttendeePhone,
			TimeZone:    req.Timezone,
		},
		Notes: req.Notes,
	}

	var out apiEnvelope[bookingData]
	if err := c.do(ctx, http.MethodPost, "/bookings", payload, &out); err != nil {
		return nil, err
	}
	return bookingFromData(out.Data)
}

// CancelBooking cancels a booking by its Cal.com uid.
func (c *Client) CancelBooking(ctx context.Context, bookingUID, reason string) error {
	if strings.TrimSpace(bookingUID) == "" {
		return fmt.Errorf("calcom: missing booking uid")
	}
	var out apiEnvelope[bookingData]
	path := fmt.Sprintf("/bookings/%s/cancel", url.PathEscape(bookingUID))
	return c.do(ctx, http.MethodPost, path, cancelPayload{CancellationReason: reason}, &out)
}

// GetAvailability returns the free slots Cal.com reports for an event type
// between start and end.
func (c *Client) GetAvailability(ctx context.Context, eventTypeID string, start, end time.Time) ([]TimeSlot, error) {
	q := url.Values{}
	q.Set("eventTypeId", strings.TrimSpace(eventTypeID))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))

	var out apiEnvelope[slotsData]
	if err := c.do(ctx, http.MethodGet, "/slots?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	var slots []TimeSlot
	for _, daySlots := range out.Data.Slots {
		for _, s := range daySlots {
			startAt, err := time.Parse(time.RFC3339, s.Start)
			if err != nil {
				continue
			}
			endAt, err := time.Parse(time.RFC3339, s.End)
			if err != nil {
				endAt = startAt
			}
			slots = append(slots, TimeSlot{StartAt: startAt, EndAt: endAt})
		}
	}
	return slots, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if strings.TrimSpace(c.apiKey) == "" {
		return fmt.Errorf("calcom: missing api key")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("calcom: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("calcom: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("cal-api-version", "2024-08-13")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calcom: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calcom: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if isSlotConflict(resp.StatusCode, respBody) {
			return ErrSlotUnavailable
		}
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("calcom: status %d: %s", resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("calcom: unmarshal response: %w", err)
		}
	}
	return nil
}

// isSlotConflict recognizes Cal.com's slot-taken rejections, which arrive as
// 409s or as 400s whose message names the unavailable slot.
func isSlotConflict(status int, body []byte) bool {
	if status == http.StatusConflict {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(string(body))
	return strings.Contains(msg, "no longer available") ||
		strings.Contains(msg, "not available") ||
		strings.Contains(msg, "already has booking")
}

func bookingFromData(data bookingData) (*Booking, error) {
	if data.UID == "" {
		return nil, fmt.Errorf("calcom: booking response missing uid")
	}
	b := &Booking{
		ID:     strconv.FormatInt(data.ID, 10),
		UID:    data.UID,
		Status: data.Status,
	}
	if t, err := time.Parse(time.RFC3339, data.Start); err == nil {
		b.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, data.End); err == nil {
		b.EndTime = t
	}
	return b, nil
}
