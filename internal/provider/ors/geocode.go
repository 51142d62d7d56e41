package ors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ridelog/internal/domain"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves free text to the coordinate of the first match
// (/geocode/search), scoped to the configured country.
func (c *Client) Geocode(ctx context.Context, text string) (domain.Coordinate, error) {
	endpoint := c.baseURL + "/geocode/search"

	query := strings.Join(strings.Fields(text), " ")
	if c.qualifier != "" {
		query += ", " + c.qualifier
	}

	resp, err := c.http.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", query)
		if c.country != "" {
			q.Set("boundary.country", c.country)
		}
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", text, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinate{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", text, ErrNoResults)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return domain.Coordinate{}, fmt.Errorf("invalid coordinate format for %q", text)
	}

	return domain.Coordinate{Lat: coords[1], Lng: coords[0]}, nil
}
