package ipapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the free ip-api.com JSON endpoint.
const DefaultBaseURL = "http://ip-api.com/json/"

// fields selects status, message, country, countryCode, regionName and city.
const fields = "49179"

// Location is where a client address resolves to.
type Location struct {
	Label       string
	CountryCode string
}

type response struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
}

// Locator resolves client IPs through ip-api.com.
type Locator struct {
	baseURL string
	client  *http.Client
}

func NewLocator(baseURL string) *Locator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Locator{baseURL: baseURL, client: &http.Client{Timeout: 3 * time.Second}}
}

// Locate returns "City, Region, Country" and the ISO country code for ip.
func (l *Locator) Locate(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+ip+"?fields="+fields, nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("locate %s: %w", ip, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("locate %s: status %d", ip, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode location: %w", err)
	}
	if body.Status != "success" {
		if body.Message == "" {
			body.Message = "lookup failed"
		}
		return Location{}, errors.New("locate " + ip + ": " + body.Message)
	}
	return Location{
		Label:       strings.Join([]string{body.City, body.RegionName, body.Country}, ", "),
		CountryCode: body.CountryCode,
	}, nil
}
