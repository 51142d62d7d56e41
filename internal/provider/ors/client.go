// Package ors is an OpenRouteService client for forward geocoding and
// driving directions.
package ors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ridelog/internal/provider"
)

// ErrNoResults is returned when a geocode search matches nothing.
var ErrNoResults = errors.New("ors: no results")

// Config configures the client.
type Config struct {
	BaseURL   string
	APIKey    string
	Profile   string // e.g. driving-car
	Country   string // ISO-3166 alpha-2 boundary for geocoding
	Qualifier string // appended to every geocode query, e.g. "Ghana"
}

// Client talks to OpenRouteService. It is safe for concurrent use.
type Client struct {
	http      *provider.Doer
	apiKey    string
	baseURL   string
	profile   string
	country   string
	qualifier string
}

// NewClient creates a new ORS client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	profile := cfg.Profile
	if profile == "" {
		profile = "driving-car"
	}

	return &Client{
		http:      provider.NewDoer(httpClient),
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		profile:   profile,
		country:   cfg.Country,
		qualifier: cfg.Qualifier,
	}
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json, application/geo+json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
