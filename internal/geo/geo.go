// Package geo resolves a place name to coordinates via the Nominatim search API.
package geo

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the geocoder has no match for the name.
var ErrNotFound = errors.New("location not found")

// Location is a geocoded place.
type Location struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// HTTPError is a non-2xx response from the geocoder.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("geocoder request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors and rate limiting.
// Other client errors are considered permanent.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Geocoder looks up coordinates for a place name.
type Geocoder interface {
	Lookup(ctx context.Context, name string) (Location, error)
}

// Client is a Nominatim client. Nominatim's usage policy allows at most one
// request per second and requires an identifying User-Agent.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Nominatim client.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logger,
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup returns the best match for name.
func (c *Client) Lookup(ctx context.Context, name string) (Location, error) {
	if strings.TrimSpace(name) == "" {
		return Location{}, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Location{}, err
	}

	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	reqURL := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Location{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Location{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Location{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Location{}, fmt.Errorf("parse geocoder response: %w", err)
	}
	if len(results) == 0 {
		return Location{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Location{}, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Location{}, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	loc := Location{Name: name, DisplayName: results[0].DisplayName, Latitude: lat, Longitude: lon}
	c.logger.Info("location geocoded",
		"name", name,
		"lat", lat,
		"lng", lon,
	)
	return loc, nil
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return !httpErr.IsRetryable()
	}
	return false
}

// Slug returns a filesystem-safe lowercase form of a place name,
// e.g. "Lyngvig Fyr" -> "lyngvig_fyr".
func Slug(name string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		case r == 'æ':
			b.WriteString("ae")
			lastSep = false
		case r == 'ø':
			b.WriteString("oe")
			lastSep = false
		case r == 'å':
			b.WriteString("aa")
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if s == "" {
		return "location"
	}
	return s
}
