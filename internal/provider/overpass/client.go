// Package overpass queries the OpenStreetMap Overpass API for points of
// interest and named streets around a position.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"ridelog/internal/domain"
	"ridelog/internal/provider"
)

// Tag keys a category may belong to. "office" is matched as a key on its own.
var poiKeys = []string{"amenity", "shop"}

var safeCategory = regexp.MustCompile(`^[a-z0-9_]+$`)

// Result is one nearby-points query.
type Result struct {
	POIs    []domain.POI
	Streets []domain.StreetLabel
}

// Client queries an Overpass interpreter endpoint.
type Client struct {
	http       *provider.Doer
	endpoint   string
	categories []string
	office     bool
}

// NewClient creates a client for endpoint. categories are OSM tag values
// matched against amenity and shop; the value "office" selects any office node.
func NewClient(endpoint string, categories []string, httpClient *http.Client) *Client {
	c := &Client{
		http:     provider.NewDoer(httpClient),
		endpoint: endpoint,
	}
	// Best-effort overlay: a throttled or failing server is not retried.
	c.http.MaxAttempts = 1

	for _, cat := range categories {
		cat = strings.ToLower(strings.TrimSpace(cat))
		switch {
		case cat == "office":
			c.office = true
		case safeCategory.MatchString(cat):
			c.categories = append(c.categories, cat)
		}
	}
	return c
}

// Query builds the Overpass QL for a search around center.
func (c *Client) Query(center domain.Coordinate, radiusM int) string {
	around := fmt.Sprintf("around:%d,%.6f,%.6f", radiusM, center.Lat, center.Lng)

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	if len(c.categories) > 0 {
		pattern := "^(" + strings.Join(c.categories, "|") + ")$"
		for _, key := range poiKeys {
			fmt.Fprintf(&b, "  node(%s)[%s~\"%s\"][name];\n", around, key, pattern)
		}
	}
	if c.office {
		fmt.Fprintf(&b, "  node(%s)[office][name];\n", around)
	}
	b.WriteString(");\nout body;\n")
	fmt.Fprintf(&b, "way(%s)[highway][name];\nout center;\n", around)
	return b.String()
}

type element struct {
	Type   string            `json:"type"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

// Nearby returns POIs and street labels within radiusM meters of center.
// Elements without a name or coordinate are skipped.
func (c *Client) Nearby(ctx context.Context, center domain.Coordinate, radiusM int) (*Result, error) {
	form := url.Values{"data": {c.Query(center, radiusM)}}.Encode()

	resp, err := c.http.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("overpass: %w", err)
	}
	defer resp.Body.Close()

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	result := &Result{}
	for _, el := range decoded.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			continue
		}

		switch el.Type {
		case "node":
			if el.Lat == nil || el.Lon == nil {
				continue
			}
			result.POIs = append(result.POIs, domain.POI{
				Coordinate: domain.Coordinate{Lat: *el.Lat, Lng: *el.Lon},
				Name:       name,
				Category:   category(el.Tags),
			})
		case "way":
			if el.Center == nil || el.Center.Lat == nil || el.Center.Lon == nil {
				continue
			}
			result.Streets = append(result.Streets, domain.StreetLabel{
				Coordinate: domain.Coordinate{Lat: *el.Center.Lat, Lng: *el.Center.Lon},
				Name:       name,
			})
		}
	}

	return result, nil
}

func category(tags map[string]string) string {
	for _, key := range poiKeys {
		if v := tags[key]; v != "" {
			return v
		}
	}
	if tags["office"] != "" {
		return "office"
	}
	return "other"
}
