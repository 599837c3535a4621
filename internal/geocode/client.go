package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Result is a resolved location. Found is false when the provider returned
// no match; callers treat that as "coordinates unavailable", not an error.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Found       bool
}

// Geocoder resolves a free-text location string to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Result, error)
}

// NominatimClient implements Geocoder against the OpenStreetMap Nominatim API.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimClient creates a Nominatim geocoding client. Nominatim's usage
// policy requires an identifying User-Agent.
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves query to coordinates. Lookups are idempotent GETs, so
// transient failures are retried with backoff before giving up.
func (c *NominatimClient) Geocode(ctx context.Context, query string) (Result, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	fullURL := c.baseURL + "/search?" + params.Encode()

	var places []nominatimPlace
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("geocode request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
			}

			if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
				return retry.Unrecoverable(fmt.Errorf("error decoding resp.Body: %w", err))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return Result{}, err
	}

	if len(places) == 0 {
		return Result{}, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}

	return Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: places[0].DisplayName,
		Found:       true,
	}, nil
}
