package domain

// TurnType classifies a turn instruction.
type TurnType string

const (
	TurnLeft     TurnType = "left"
	TurnRight    TurnType = "right"
	TurnStraight TurnType = "straight"
	TurnOther    TurnType = "other"
)

// RouteStep is one turn-by-turn instruction. Index points into the planned
// route's coordinate sequence where the instruction becomes relevant.
type RouteStep struct {
	Instruction    string   `json:"instruction"`
	DistanceMeters float64  `json:"distance_meters"`
	Turn           TurnType `json:"turn"`
	Index          int      `json:"index"`
}

// RouteResult is the outcome of one successful planning call.
type RouteResult struct {
	Start          Coordinate   `json:"start"`
	End            Coordinate   `json:"end"`
	Path           []Coordinate `json:"path"`
	Steps          []RouteStep  `json:"steps"`
	DistanceMeters float64      `json:"distance_meters"`
}
