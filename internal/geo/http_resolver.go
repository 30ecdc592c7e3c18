package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPResolver queries an ip-api style JSON endpoint. The lookup is a
// side call on the login path, so the client timeout stays short and
// every failure maps to ErrUnavailable rather than propagating.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver against the given base URL, e.g.
// "http://ip-api.com/json".
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type geoResponse struct {
	Status  string  `json:"status"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (Location, error) {
	if ip == "" {
		return Location{}, ErrUnavailable
	}

	url := fmt.Sprintf("%s/%s", r.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, fmt.Errorf("geo request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo lookup status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("geo response decode: %w", err)
	}

	// ip-api reports "fail" with a 200 status for private ranges and
	// unknown addresses.
	if body.Status != "" && body.Status != "success" {
		return Location{}, ErrUnavailable
	}

	return Location{
		Latitude:  body.Lat,
		Longitude: body.Lon,
		City:      body.City,
		Country:   body.Country,
	}, nil
}
