package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ridelog/internal/domain"
)

// ErrNoRoute is returned when the directions response carries no route.
var ErrNoRoute = errors.New("ors: no route")

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
			} `json:"summary"`
			Segments []struct {
				Steps []struct {
					Distance    float64 `json:"distance"`
					Type        int     `json:"type"`
					Instruction string  `json:"instruction"`
					WayPoints   []int   `json:"way_points"`
				} `json:"steps"`
			} `json:"segments"`
		} `json:"properties"`
	} `json:"features"`
}

// Directions requests a driving route between start and end
// (/v2/directions/{profile}/geojson).
func (c *Client) Directions(ctx context.Context, start, end domain.Coordinate) (*domain.RouteResult, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, c.profile)

	body, err := json.Marshal(directionsRequest{
		Coordinates: [][2]float64{{start.Lng, start.Lat}, {end.Lng, end.Lat}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode directions request: %w", err)
	}

	resp, err := c.http.DoWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	})
	if err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return nil, ErrNoRoute
	}
	feature := decoded.Features[0]

	path := make([]domain.Coordinate, 0, len(feature.Geometry.Coordinates))
	for _, pt := range feature.Geometry.Coordinates {
		if len(pt) < 2 {
			return nil, fmt.Errorf("invalid route coordinate %v", pt)
		}
		path = append(path, domain.Coordinate{Lat: pt[1], Lng: pt[0]})
	}
	if len(path) == 0 {
		return nil, ErrNoRoute
	}

	var steps []domain.RouteStep
	for _, seg := range feature.Properties.Segments {
		for _, s := range seg.Steps {
			index := 0
			if len(s.WayPoints) > 0 {
				index = s.WayPoints[0]
			}
			steps = append(steps, domain.RouteStep{
				Instruction:    s.Instruction,
				DistanceMeters: s.Distance,
				Turn:           TurnType(s.Type),
				Index:          index,
			})
		}
	}

	return &domain.RouteResult{
		Start:          start,
		End:            end,
		Path:           path,
		Steps:          steps,
		DistanceMeters: feature.Properties.Summary.Distance,
	}, nil
}

// TurnType maps an ORS instruction type code to a turn classification.
func TurnType(code int) domain.TurnType {
	switch code {
	case 0, 2, 4, 12: // left, sharp left, slight left, keep left
		return domain.TurnLeft
	case 1, 3, 5, 13:
		return domain.TurnRight
	case 6:
		return domain.TurnStraight
	default:
		return domain.TurnOther
	}
}
