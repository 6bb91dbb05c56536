// Package location is a small Nominatim client used to fill in addresses.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// Nominatim's usage policy allows one request per second.
	DefaultInterval = time.Second
)

// Address is the structured address Nominatim returns.
type Address struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	Suburb      string `json:"suburb"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Region      string `json:"region"`
	State       string `json:"state"`
	Postcode    string `json:"postcode"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

// Locality is the city, town or village, in that order.
func (a Address) Locality() string {
	for _, s := range []string{a.City, a.Town, a.Village} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Format renders "<number> <road>, <suburb>, <locality> <postcode>"
// leaving out the parts that are missing.
func (a Address) Format() string {
	var parts []string
	street := strings.TrimSpace(a.HouseNumber + " " + a.Road)
	if street != "" {
		parts = append(parts, street)
	}
	if a.Suburb != "" && a.Suburb != a.Locality() {
		parts = append(parts, a.Suburb)
	}
	if loc := strings.TrimSpace(a.Locality() + " " + a.Postcode); loc != "" {
		parts = append(parts, loc)
	}
	return strings.Join(parts, ", ")
}

// Location is a reverse geocoding result.
type Location struct {
	PlaceID     int64   `json:"place_id"`
	OsmType     string  `json:"osm_type"`
	OsmID       int64   `json:"osm_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error"`
}

// Client calls Nominatim no more often than its interval allows.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	interval   time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewClient(userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultBaseURL,
		userAgent:  userAgent,
		interval:   DefaultInterval,
	}
}

// wait blocks until the next request slot.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.interval - time.Since(c.last); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.last = time.Now()
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim: unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Reverse looks up the address at a coordinate.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Location, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 7, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', 7, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("zoom", "18")

	var loc Location
	if err := c.get(ctx, "/reverse", params, &loc); err != nil {
		return nil, err
	}
	if loc.Error != "" {
		return nil, fmt.Errorf("nominatim: %s", loc.Error)
	}
	return &loc, nil
}
