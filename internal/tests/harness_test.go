package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"ridelog/internal/domain"
	"ridelog/internal/geo"
	"ridelog/internal/mapview"
	"ridelog/internal/service"
)

const (
	testTickInterval  = time.Second
	testDraftInterval = 15 * time.Second
	testStoreTimeout  = 200 * time.Millisecond
)

var accra = domain.Coordinate{Lat: 5.6037, Lng: -0.1870}

// trackerHarness bundles a tracker with the mocks it talks to.
type trackerHarness struct {
	Tracker   *service.Tracker
	Trips     *MockTripRepository
	Customers *MockCustomerRepository
	Drafts    *MockDraftRepository
	Planner   *MockPlanner
	Refresher *MockRefresher
	View      *mapview.Recorder
	Tickers   *TickerFactory
	Clock     *ManualClock
}

func newTrackerHarness() *trackerHarness {
	return &trackerHarness{
		Trips:     NewMockTripRepository(),
		Customers: NewMockCustomerRepository(),
		Drafts:    NewMockDraftRepository(),
		Planner:   &MockPlanner{},
		Refresher: &MockRefresher{},
		View:      mapview.NewRecorder(),
		Tickers:   NewTickerFactory(),
		Clock:     NewManualClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)),
	}
}

// run builds the tracker and starts its loop. The returned func stops the
// loop and waits for it to exit; it is also registered as cleanup.
func (h *trackerHarness) run(t *testing.T) func() {
	t.Helper()

	ledger := service.NewLedgerService(h.Trips, NewMockExpenseRepository(), h.Customers)
	h.Tracker = service.NewTracker(service.TrackerConfig{
		MinMovementKm:     0.005,
		POIRefreshKm:      0.75,
		TickInterval:      testTickInterval,
		DraftSaveInterval: testDraftInterval,
		CommissionRate:    0.20,
		FuelCostPerKm:     0.5,
		StoreTimeout:      testStoreTimeout,
	}, service.TrackerDeps{
		Ledger:  ledger,
		Drafts:  h.Drafts,
		Planner: h.Planner,
		Nearby:  h.Refresher,
		View:    h.View,
	},
		service.WithClock(h.Clock.Now),
		service.WithTickerFactory(h.Tickers.New),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Tracker.Run(ctx)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	t.Cleanup(stop)
	return stop
}

func (h *trackerHarness) move(t *testing.T, c domain.Coordinate) {
	t.Helper()
	if err := h.Tracker.UpdatePosition(context.Background(), domain.Position{Coordinate: c}); err != nil {
		t.Fatalf("update position: %v", err)
	}
}

func (h *trackerHarness) snapshot(t *testing.T) *service.TrackingSnapshot {
	t.Helper()
	snap, err := h.Tracker.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func (h *trackerHarness) startTrip(t *testing.T, pickup string) *domain.Trip {
	t.Helper()
	trip, err := h.Tracker.StartTrip(context.Background(), service.StartTripRequest{Pickup: pickup})
	if err != nil {
		t.Fatalf("start trip: %v", err)
	}
	return trip
}

// straightRoute returns a route running north from start in 50 m hops,
// with a step every third point.
func straightRoute(start domain.Coordinate, points int) *domain.RouteResult {
	route := &domain.RouteResult{Start: start}
	for i := 0; i < points; i++ {
		route.Path = append(route.Path, geo.Offset(start, float64(i)*50, 0))
	}
	for i := 0; i < points; i += 3 {
		route.Steps = append(route.Steps, domain.RouteStep{
			Instruction:    "Continue",
			DistanceMeters: 150,
			Turn:           domain.TurnStraight,
			Index:          i,
		})
	}
	route.End = route.Path[len(route.Path)-1]
	route.DistanceMeters = float64(points-1) * 50
	return route
}
