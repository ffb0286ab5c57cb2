// Package sun fetches daily sunrise and sunset times from sunrise-sunset.org.
package sun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoSunEvent is returned for polar day or night, when the service
// reports no sunrise or sunset for the date.
var ErrNoSunEvent = errors.New("no sunrise or sunset on this date")

// polarSentinel is what the service returns instead of a real time.
const polarSentinel = "1970-01-01T00:00:01+00:00"

// Times holds one day's sun events in the caller's timezone.
type Times struct {
	Date    string    `json:"date"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// HTTPError is a non-2xx response from the sun service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sun times request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Source provides sun times for a date at fixed coordinates.
type Source interface {
	Times(ctx context.Context, date time.Time) (Times, error)
}

// Client queries sunrise-sunset.org for one location.
type Client struct {
	baseURL    string
	lat, lng   float64
	loc        *time.Location
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given coordinates. Results are
// converted to loc.
func NewClient(baseURL string, lat, lng float64, loc *time.Location, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		lat:        lat,
		lng:        lng,
		loc:        loc,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type apiResponse struct {
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
	Status string `json:"status"`
}

// Times fetches sunrise and sunset for the calendar date of date in the
// client's timezone.
func (c *Client) Times(ctx context.Context, date time.Time) (Times, error) {
	day := date.In(c.loc).Format("2006-01-02")

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(c.lng, 'f', 6, 64))
	q.Set("date", day)
	q.Set("formatted", "0")
	q.Set("tzid", c.loc.String())
	reqURL := c.baseURL + "/json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Times{}, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Times{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	if err != nil {
		return Times{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Times{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Times{}, fmt.Errorf("parse sun times response: %w", err)
	}
	if parsed.Status != "OK" {
		return Times{}, fmt.Errorf("sun times service status %q", parsed.Status)
	}
	if parsed.Results.Sunrise == polarSentinel || parsed.Results.Sunset == polarSentinel {
		return Times{}, fmt.Errorf("%w: %s", ErrNoSunEvent, day)
	}

	sunrise, err := time.Parse(time.RFC3339, parsed.Results.Sunrise)
	if err != nil {
		return Times{}, fmt.Errorf("parse sunrise %q: %w", parsed.Results.Sunrise, err)
	}
	sunset, err := time.Parse(time.RFC3339, parsed.Results.Sunset)
	if err != nil {
		return Times{}, fmt.Errorf("parse sunset %q: %w", parsed.Results.Sunset, err)
	}

	t := Times{Date: day, Sunrise: sunrise.In(c.loc), Sunset: sunset.In(c.loc)}
	c.logger.Debug("sun times fetched",
		"date", day,
		"sunrise", t.Sunrise.Format("15:04:05"),
		"sunset", t.Sunset.Format("15:04:05"),
	)
	return t, nil
}
