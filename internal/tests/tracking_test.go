package tests

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridelog/internal/domain"
	"ridelog/internal/geo"
	"ridelog/internal/mapview"
	"ridelog/internal/service"
)

// ──────────────────────────────────────────────
// 1. DISTANCE ACCUMULATION
// ──────────────────────────────────────────────

func TestTracking_DistanceIgnoresJitter(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	h.move(t, accra)
	h.startTrip(t, "Osu")

	p1 := geo.Offset(accra, 5.5, 0)
	p2 := geo.Offset(p1, 3, 0) // below the noise threshold
	p3 := geo.Offset(p2, 50, 0)
	p4 := geo.Offset(p3, 6, 0)
	for _, p := range []domain.Coordinate{p1, p2, p3, p4} {
		h.move(t, p)
	}

	want := geo.Round2(geo.DistanceKm(accra, p1))
	want = geo.Round2(want + geo.DistanceKm(p1, p3))
	want = geo.Round2(want + geo.DistanceKm(p3, p4))

	snap := h.snapshot(t)
	require.Equal(t, 3, snap.PathLength)
	assert.Equal(t, []domain.Coordinate{p1, p3, p4}, snap.Trip.Path)
	assert.InDelta(t, want, snap.DistanceKm, 1e-9)
}

func TestTracking_HopAtThresholdCounts(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	h.move(t, accra)
	h.startTrip(t, "Osu")

	p1 := geo.Offset(accra, 5, 0)
	p2 := geo.Offset(p1, 3, 0)
	p3 := geo.Offset(p2, 50, 0)
	p4 := geo.Offset(p3, 6, 0)
	for _, p := range []domain.Coordinate{p1, p2, p3, p4} {
		h.move(t, p)
	}

	want := geo.Round2(geo.DistanceKm(accra, p1))
	want = geo.Round2(want + geo.DistanceKm(p1, p3))
	want = geo.Round2(want + geo.DistanceKm(p3, p4))

	snap := h.snapshot(t)
	require.Equal(t, 3, snap.PathLength)
	assert.Equal(t, []domain.Coordinate{p1, p3, p4}, snap.Trip.Path)
	assert.InDelta(t, want, snap.DistanceKm, 1e-9)
	assert.InDelta(t, 0.07, snap.DistanceKm, 1e-9)
}

func TestTracking_FirstFixWithoutGPSAddsNoDistance(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	h.startTrip(t, "Osu")
	h.move(t, accra)

	snap := h.snapshot(t)
	assert.Equal(t, 1, snap.PathLength)
	assert.Zero(t, snap.DistanceKm)

	h.move(t, geo.Offset(accra, 100, 0))
	snap = h.snapshot(t)
	assert.Equal(t, 2, snap.PathLength)
	assert.InDelta(t, 0.1, snap.DistanceKm, 1e-9)
}

func TestTracking_RejectsInvalidPosition(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	err := h.Tracker.UpdatePosition(context.Background(), domain.Position{
		Coordinate: domain.Coordinate{Lat: 91, Lng: 0},
	})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)

	err = h.Tracker.UpdatePosition(context.Background(), domain.Position{
		Coordinate: domain.Coordinate{Lat: math.NaN(), Lng: 0},
	})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)
}

// ──────────────────────────────────────────────
// 2. ROUTE PLANNING AND INSTRUCTIONS
// ──────────────────────────────────────────────

func TestTracking_InstructionPointerOnlyAdvances(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	route := straightRoute(accra, 10)
	h.Planner.PlanFunc = func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
		return route, nil
	}
	h.run(t)

	h.move(t, accra)
	_, err := h.Tracker.PlanRoute(context.Background(), "Osu", "Airport")
	require.NoError(t, err)
	h.startTrip(t, "Osu")
	assert.Equal(t, 0, h.snapshot(t).StepIndex)

	h.move(t, route.Path[4])
	assert.Equal(t, 2, h.snapshot(t).StepIndex)

	// Drifting back toward an earlier point never rewinds.
	h.move(t, route.Path[1])
	assert.Equal(t, 2, h.snapshot(t).StepIndex)

	h.move(t, route.Path[7])
	snap := h.snapshot(t)
	assert.Equal(t, 3, snap.StepIndex)
	require.NotNil(t, snap.CurrentStep)
	assert.Equal(t, 9, snap.CurrentStep.Index)

	// Past the last step there is nothing further to advance to.
	h.move(t, route.Path[9])
	assert.Equal(t, 3, h.snapshot(t).StepIndex)
}

func TestTracking_PlanRouteSupersedesOlderCall(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	slow := straightRoute(accra, 4)
	fast := straightRoute(geo.Offset(accra, 0, 500), 8)

	gate := make(chan struct{})
	slowStarted := make(chan struct{})
	h.Planner.PlanFunc = func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
		if req.Dropoff == "Kaneshie" {
			close(slowStarted)
			<-gate
			return slow, nil
		}
		return fast, nil
	}
	h.run(t)

	slowErr := make(chan error, 1)
	go func() {
		_, err := h.Tracker.PlanRoute(context.Background(), "Osu", "Kaneshie")
		slowErr <- err
	}()
	<-slowStarted

	got, err := h.Tracker.PlanRoute(context.Background(), "Osu", "Airport")
	require.NoError(t, err)
	assert.Equal(t, fast.End, got.End)

	close(gate)
	select {
	case err := <-slowErr:
		assert.ErrorIs(t, err, service.ErrRouteSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded plan call never returned")
	}

	snap := h.snapshot(t)
	assert.Len(t, snap.Steps, len(fast.Steps))
	assert.Equal(t, "Airport", snap.Dropoff)
	assert.InDelta(t, geo.Round2(fast.DistanceMeters/1000), snap.RouteDistanceKm, 1e-9)

	cmd, ok := h.View.Last(mapview.CmdDestination)
	require.True(t, ok)
	assert.Equal(t, &fast.End, cmd.Payload)
}

func TestTracking_FailedPlanKeepsPreviousRoute(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	route := straightRoute(accra, 4)
	h.Planner.PlanFunc = func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
		if req.Dropoff == "Nowhere" {
			return nil, service.ErrDestinationNotFound
		}
		return route, nil
	}
	h.run(t)

	_, err := h.Tracker.PlanRoute(context.Background(), "Osu", "Airport")
	require.NoError(t, err)

	_, err = h.Tracker.PlanRoute(context.Background(), "Osu", "Nowhere")
	assert.ErrorIs(t, err, service.ErrDestinationNotFound)

	snap := h.snapshot(t)
	assert.Len(t, snap.Steps, len(route.Steps))
	assert.Equal(t, 1, h.View.Count(mapview.CmdRoute))
}

func TestTracking_PlanPassesLastKnownPosition(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	var seen service.PlanRequest
	h.Planner.PlanFunc = func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
		seen = req
		return straightRoute(accra, 3), nil
	}
	h.run(t)

	h.move(t, accra)
	_, err := h.Tracker.PlanRoute(context.Background(), "My Current Location", "Airport")
	require.NoError(t, err)

	require.NotNil(t, seen.LastKnown)
	assert.Equal(t, accra, *seen.LastKnown)
	assert.Equal(t, "Airport", seen.Dropoff)
}

// ──────────────────────────────────────────────
// 3. TRIP LIFECYCLE
// ──────────────────────────────────────────────

func TestTracking_StartRequiresPickupAndIdle(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)
	ctx := context.Background()

	_, err := h.Tracker.StartTrip(ctx, service.StartTripRequest{Pickup: "   "})
	assert.ErrorIs(t, err, service.ErrMissingPickup)

	_, err = h.Tracker.StartTrip(ctx, service.StartTripRequest{Pickup: "Osu", PaymentMethod: "BITCOIN"})
	assert.ErrorIs(t, err, service.ErrInvalidPaymentMethod)

	_, err = h.Tracker.EndTrip(ctx, service.EndTripRequest{Fare: 20})
	assert.ErrorIs(t, err, service.ErrNoActiveTrip)

	_, err = h.Tracker.AbandonTrip(ctx)
	assert.ErrorIs(t, err, service.ErrNoActiveTrip)

	trip := h.startTrip(t, "Osu")
	assert.Equal(t, domain.TripStatusActive, trip.Status)
	assert.Equal(t, domain.PaymentMethodCash, trip.PaymentMethod)

	_, err = h.Tracker.StartTrip(ctx, service.StartTripRequest{Pickup: "Labone"})
	assert.ErrorIs(t, err, service.ErrTripAlreadyActive)
	assert.Equal(t, trip.ID, h.snapshot(t).Trip.ID)
}

func TestTracking_StartUsesPlannedPickup(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.Planner.PlanFunc = func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
		return straightRoute(accra, 3), nil
	}
	h.run(t)

	_, err := h.Tracker.PlanRoute(context.Background(), "Osu", "Airport")
	require.NoError(t, err)

	trip, err := h.Tracker.StartTrip(context.Background(), service.StartTripRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Osu", trip.Pickup)
	assert.Equal(t, "Airport", trip.Dropoff)
}

func TestTracking_EndTripRejectsNonPositiveFare(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	h.move(t, accra)
	trip := h.startTrip(t, "Osu")
	h.move(t, geo.Offset(accra, 20, 0))
	before := h.snapshot(t)

	for _, fare := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{Fare: fare})
		assert.ErrorIs(t, err, service.ErrInvalidFare, "fare %v", fare)
	}

	after := h.snapshot(t)
	assert.Equal(t, service.StateActive, after.State)
	assert.Equal(t, trip.ID, after.Trip.ID)
	assert.Equal(t, before.PathLength, after.PathLength)
	assert.Equal(t, before.DistanceKm, after.DistanceKm)
	assert.Zero(t, h.Trips.SaveCallCount)
}

func TestTracking_EndTripCommitsToLedger(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.Planner.PlanFunc = func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
		return straightRoute(accra, 5), nil
	}
	h.run(t)

	h.move(t, accra)
	_, err := h.Tracker.PlanRoute(context.Background(), "Osu", "")
	require.NoError(t, err)
	trip := h.startTrip(t, "Osu")
	h.move(t, geo.Offset(accra, 1000, 0))
	h.Clock.Advance(10 * time.Minute)

	done, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{Fare: 50})
	require.NoError(t, err)

	assert.Equal(t, trip.ID, done.ID)
	assert.Equal(t, domain.TripStatusCompleted, done.Status)
	assert.Equal(t, 50.0, done.Fare)
	assert.Equal(t, 10.0, done.Commission)
	assert.InDelta(t, 1.0, done.DistanceKm, 1e-9)
	assert.InDelta(t, 0.5, done.FuelCostEstimate, 1e-9)
	assert.Equal(t, domain.DropoffUnspecified, done.Dropoff)
	require.NotNil(t, done.EndedAt)
	assert.Equal(t, 10*time.Minute, done.Duration())

	all, err := h.Trips.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, trip.ID, all[0].ID)

	snap := h.snapshot(t)
	assert.Equal(t, service.StateIdle, snap.State)
	assert.Nil(t, snap.Trip)
	assert.Zero(t, snap.PathLength)
	assert.Empty(t, snap.Steps)
	assert.Nil(t, h.Drafts.Draft())

	// Completion clears the live overlays.
	cmd, ok := h.View.Last(mapview.CmdDestination)
	require.True(t, ok)
	assert.Nil(t, cmd.Payload)
	cmd, ok = h.View.Last(mapview.CmdPath)
	require.True(t, ok)
	assert.Empty(t, cmd.Payload)
}

func TestTracking_EndTripOverridesFromRequest(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.Customers.AddCustomer(&domain.Customer{ID: "cust-1", Name: "Ama", TotalTrips: 2, TotalSpent: 40})
	h.run(t)

	h.startTrip(t, "Osu")
	done, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{
		Fare:          30,
		Dropoff:       "  Circle ",
		PaymentMethod: domain.PaymentMethodCard,
		CustomerID:    "cust-1",
		Notes:         "airport run",
	})
	require.NoError(t, err)

	assert.Equal(t, "Circle", done.Dropoff)
	assert.Equal(t, domain.PaymentMethodCard, done.PaymentMethod)
	assert.Equal(t, "airport run", done.Notes)
	assert.Equal(t, 6.0, done.Commission)

	customer, err := h.Customers.GetByID(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 3, customer.TotalTrips)
	assert.Equal(t, 70.0, customer.TotalSpent)
}

func TestTracking_LedgerFailureKeepsTripActive(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	trip := h.startTrip(t, "Osu")
	h.Trips.SetSaveError(ErrMockTimeout)

	_, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{Fare: 25})
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrLedgerUnavailable))

	snap := h.snapshot(t)
	assert.Equal(t, service.StateActive, snap.State)
	assert.Equal(t, trip.ID, snap.Trip.ID)
	assert.NotNil(t, h.Drafts.Draft())

	// Retrying once storage recovers completes the same trip.
	h.Trips.SetSaveError(nil)
	done, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{Fare: 25})
	require.NoError(t, err)
	assert.Equal(t, trip.ID, done.ID)
	assert.Equal(t, 1, h.Trips.CountTrips())
}

func TestTracking_HungLedgerWriteDoesNotStallLoop(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	trip := h.startTrip(t, "Osu")
	release := h.Trips.HoldSaves()
	defer release()

	endErr := make(chan error, 1)
	go func() {
		_, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{Fare: 50})
		endErr <- err
	}()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&h.Trips.SaveCallCount) == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Tracker.UpdatePosition(ctx, domain.Position{Coordinate: geo.Offset(accra, 20, 0)}))
	snap, err := h.Tracker.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.StateActive, snap.State)

	select {
	case err := <-endErr:
		assert.True(t, errors.Is(err, service.ErrLedgerUnavailable))
	case <-time.After(2 * time.Second):
		t.Fatal("EndTrip did not return after the store timeout")
	}

	snap = h.snapshot(t)
	assert.Equal(t, service.StateActive, snap.State)
	assert.Equal(t, trip.ID, snap.Trip.ID)
	assert.Nil(t, snap.Trip.EndedAt)
	assert.Zero(t, h.Trips.CountTrips())
}

func TestTracking_AbandonDiscardsTrip(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	trip := h.startTrip(t, "Osu")
	abandoned, err := h.Tracker.AbandonTrip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trip.ID, abandoned.ID)

	assert.Equal(t, service.StateIdle, h.snapshot(t).State)
	assert.Zero(t, h.Trips.CountTrips())
	assert.Nil(t, h.Drafts.Draft())
}

// ──────────────────────────────────────────────
// 4. TIMERS AND DRAFTS
// ──────────────────────────────────────────────

func TestTracking_TickCountsElapsedSeconds(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	assert.Nil(t, h.Tickers.Ticker(testTickInterval), "no ticker while idle")

	h.startTrip(t, "Osu")
	for i := 0; i < 3; i++ {
		require.True(t, h.Tickers.Fire(testTickInterval))
	}
	assert.Equal(t, int64(3), h.snapshot(t).ElapsedSeconds)

	tick := h.Tickers.Ticker(testTickInterval)
	_, err := h.Tracker.EndTrip(context.Background(), service.EndTripRequest{Fare: 10})
	require.NoError(t, err)
	assert.True(t, tick.Stopped())
	assert.Zero(t, h.snapshot(t).ElapsedSeconds)
}

func TestTracking_DraftSavedPeriodicallyAndOnShutdown(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	stop := h.run(t)

	h.move(t, accra)
	trip := h.startTrip(t, "Osu")
	assert.EqualValues(t, 1, h.Drafts.SaveCallCount)

	h.move(t, geo.Offset(accra, 30, 0))
	require.True(t, h.Tickers.Fire(testTickInterval))
	require.True(t, h.Tickers.Fire(testDraftInterval))
	// A snapshot round trip guarantees the tick has been handled.
	h.snapshot(t)

	draft := h.Drafts.Draft()
	require.NotNil(t, draft)
	assert.EqualValues(t, 2, h.Drafts.SaveCallCount)
	assert.Equal(t, trip.ID, draft.Trip.ID)
	assert.Len(t, draft.Trip.Path, 1)
	assert.Equal(t, int64(1), draft.ElapsedSeconds)

	h.move(t, geo.Offset(accra, 60, 0))
	stop()

	draft = h.Drafts.Draft()
	require.NotNil(t, draft)
	assert.EqualValues(t, 3, h.Drafts.SaveCallCount)
	assert.Len(t, draft.Trip.Path, 2)
	require.NotNil(t, draft.Anchor)
	assert.Equal(t, geo.Offset(accra, 60, 0), *draft.Anchor)

	_, err := h.Tracker.Snapshot(context.Background())
	assert.ErrorIs(t, err, service.ErrTrackerStopped)
}

func TestTracking_RestoreResumesDraft(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	a := accra
	b := geo.Offset(accra, 200, 0)
	err := h.Drafts.SaveDraft(context.Background(), &domain.TripDraft{
		Trip: &domain.Trip{
			ID:            "trip-restored",
			StartedAt:     h.Clock.Now().Add(-5 * time.Minute),
			Pickup:        "Osu",
			Dropoff:       "Airport",
			PaymentMethod: domain.PaymentMethodCash,
			Path:          []domain.Coordinate{a, b},
			DistanceKm:    0.2,
			Status:        domain.TripStatusActive,
		},
		ElapsedSeconds: 120,
		SavedAt:        h.Clock.Now().Add(-30 * time.Second),
	})
	require.NoError(t, err)
	h.run(t)

	trip, err := h.Tracker.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, trip)
	assert.Equal(t, "trip-restored", trip.ID)

	snap := h.snapshot(t)
	assert.Equal(t, service.StateActive, snap.State)
	assert.Equal(t, int64(150), snap.ElapsedSeconds)
	assert.Equal(t, 2, snap.PathLength)
	assert.Equal(t, "Airport", snap.Dropoff)

	// Accumulation continues from the last stored sample.
	h.move(t, geo.Offset(b, 10, 0))
	snap = h.snapshot(t)
	assert.Equal(t, 3, snap.PathLength)
	assert.InDelta(t, geo.Round2(0.2+0.01), snap.DistanceKm, 1e-9)
}

func TestTracking_RestoreIgnoresFinishedDraft(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	ended := h.Clock.Now()
	err := h.Drafts.SaveDraft(context.Background(), &domain.TripDraft{
		Trip: &domain.Trip{ID: "old", EndedAt: &ended, Status: domain.TripStatusCompleted},
	})
	require.NoError(t, err)
	h.run(t)

	trip, err := h.Tracker.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, trip)
	assert.Nil(t, h.Drafts.Draft())
	assert.Equal(t, service.StateIdle, h.snapshot(t).State)
}

// ──────────────────────────────────────────────
// 5. NEARBY POINTS WHILE IDLE
// ──────────────────────────────────────────────

func TestTracking_IdleRefreshesNearbyPointsByDistance(t *testing.T) {
	t.Parallel()

	h := newTrackerHarness()
	h.run(t)

	h.move(t, accra)
	h.move(t, geo.Offset(accra, 100, 0))
	assert.Len(t, h.Refresher.Positions(), 1)

	far := geo.Offset(accra, 800, 0)
	h.move(t, far)
	positions := h.Refresher.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, far, positions[1])

	// No refreshes while a trip is running.
	h.startTrip(t, "Osu")
	h.move(t, geo.Offset(far, 2000, 0))
	assert.Len(t, h.Refresher.Positions(), 2)

	cmd, ok := h.View.Last(mapview.CmdMarker)
	require.True(t, ok)
	assert.Equal(t, geo.Offset(far, 2000, 0), cmd.Payload)
}
