package domain

// POI is a nearby point of interest shown on the map overlay.
type POI struct {
	Coordinate
	Name     string `json:"name"`
	Category string `json:"category"`
}

// StreetLabel is a named street drawn at its center point.
type StreetLabel struct {
	Coordinate
	Name string `json:"name"`
}
