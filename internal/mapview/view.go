// Package mapview is the map overlay capability the tracking core drives.
// The core never holds rendering handles; it issues imperative commands
// which an implementation forwards to whatever draws the map.
package mapview

import (
	"sync"

	"ridelog/internal/domain"
)

// View is the imperative map overlay surface.
type View interface {
	Center(c domain.Coordinate)
	MovePositionMarker(c domain.Coordinate)
	SetTraveledPath(path []domain.Coordinate)
	// SetDestination places the destination pin, or removes it when c is nil.
	SetDestination(c *domain.Coordinate)
	SetRoute(path []domain.Coordinate)
	FitBounds(a, b domain.Coordinate)
	SetPOIs(pois []domain.POI)
	SetStreetLabels(labels []domain.StreetLabel)
}

// Command types sent to map clients.
const (
	CmdCenter       = "center"
	CmdMarker       = "marker"
	CmdPath         = "path"
	CmdDestination  = "destination"
	CmdRoute        = "route"
	CmdFitBounds    = "fit_bounds"
	CmdPOIs         = "pois"
	CmdStreetLabels = "street_labels"
)

// Command is one overlay instruction.
type Command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Bounds is the payload of a fit_bounds command.
type Bounds struct {
	SouthWest domain.Coordinate `json:"south_west"`
	NorthEast domain.Coordinate `json:"north_east"`
}

// BoundsOf returns the box enclosing a and b.
func BoundsOf(a, b domain.Coordinate) Bounds {
	return Bounds{
		SouthWest: domain.Coordinate{Lat: min(a.Lat, b.Lat), Lng: min(a.Lng, b.Lng)},
		NorthEast: domain.Coordinate{Lat: max(a.Lat, b.Lat), Lng: max(a.Lng, b.Lng)},
	}
}

// commands adapts a publish func into a View.
type commands struct {
	publish func(Command)
}

func (v commands) Center(c domain.Coordinate) {
	v.publish(Command{Type: CmdCenter, Payload: c})
}

func (v commands) MovePositionMarker(c domain.Coordinate) {
	v.publish(Command{Type: CmdMarker, Payload: c})
}

func (v commands) SetTraveledPath(path []domain.Coordinate) {
	v.publish(Command{Type: CmdPath, Payload: copyOf(path)})
}

func (v commands) SetDestination(c *domain.Coordinate) {
	if c == nil {
		v.publish(Command{Type: CmdDestination, Payload: nil})
		return
	}
	dest := *c
	v.publish(Command{Type: CmdDestination, Payload: &dest})
}

func (v commands) SetRoute(path []domain.Coordinate) {
	v.publish(Command{Type: CmdRoute, Payload: copyOf(path)})
}

func (v commands) FitBounds(a, b domain.Coordinate) {
	v.publish(Command{Type: CmdFitBounds, Payload: BoundsOf(a, b)})
}

func (v commands) SetPOIs(pois []domain.POI) {
	v.publish(Command{Type: CmdPOIs, Payload: copyOf(pois)})
}

func (v commands) SetStreetLabels(labels []domain.StreetLabel) {
	v.publish(Command{Type: CmdStreetLabels, Payload: copyOf(labels)})
}

func copyOf[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Recorder is a View that keeps every command in memory.
type Recorder struct {
	commands
	mu   sync.Mutex
	cmds []Command
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.commands = commands{publish: r.record}
	return r
}

func (r *Recorder) record(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
}

// Commands returns a copy of everything recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyOf(r.cmds)
}

// Last returns the most recent command of the given type.
func (r *Recorder) Last(cmdType string) (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.cmds) - 1; i >= 0; i-- {
		if r.cmds[i].Type == cmdType {
			return r.cmds[i], true
		}
	}
	return Command{}, false
}

// Count returns how many commands of the given type were recorded.
func (r *Recorder) Count(cmdType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cmds {
		if c.Type == cmdType {
			n++
		}
	}
	return n
}

// Nop discards every command.
type Nop struct{}

func (Nop) Center(domain.Coordinate) {}
func (Nop) MovePositionMarker(domain.Coordinate) {}
func (Nop) SetTraveledPath([]domain.Coordinate) {}
func (Nop) SetDestination(*domain.Coordinate) {}
func (Nop) SetRoute([]domain.Coordinate) {}
func (Nop) FitBounds(domain.Coordinate, domain.Coordinate) {}
func (Nop) SetPOIs([]domain.POI) {}
func (Nop) SetStreetLabels([]domain.StreetLabel) {}

var (
	_ View = (*Recorder)(nil)
	_ View = Nop{}
	_ View = (*Hub)(nil)
)
