package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
	"ridelog/internal/geo"
	"ridelog/internal/mapview"
	"ridelog/internal/repository"
)

// TrackerState is the live tracking state.
type TrackerState string

const (
	StateIdle   TrackerState = "IDLE"
	StateActive TrackerState = "ACTIVE"
)

const shutdownDraftTimeout = 5 * time.Second

// TrackerConfig holds the tracking thresholds.
type TrackerConfig struct {
	MinMovementKm     float64
	POIRefreshKm      float64
	TickInterval      time.Duration
	DraftSaveInterval time.Duration
	CommissionRate    float64
	FuelCostPerKm     float64

	// StoreTimeout bounds each ledger commit and draft write made from the
	// run loop. Zero leaves the caller's deadline in charge.
	StoreTimeout time.Duration
}

// Ticker is the subset of time.Ticker the tracker needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// TripCommitter persists completed trips.
type TripCommitter interface {
	CommitTrip(ctx context.Context, trip *domain.Trip) error
}

// Planner plans a route between two place labels.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*domain.RouteResult, error)
}

// PointsRefresher refreshes the nearby-points overlay without blocking.
type PointsRefresher interface {
	Refresh(ctx context.Context, position domain.Coordinate) bool
}

// TrackerDeps are the tracker's collaborators. Drafts and Nearby may be nil.
type TrackerDeps struct {
	Ledger  TripCommitter
	Drafts  repository.DraftRepository
	Planner Planner
	Nearby  PointsRefresher
	View    mapview.View
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithTickerFactory replaces NewTimeTicker for the elapsed and draft tickers.
func WithTickerFactory(f func(time.Duration) Ticker) TrackerOption {
	return func(t *Tracker) { t.newTicker = f }
}

// Tracker owns the in-progress trip. All state lives in the goroutine started
// by Run; exported methods hand it commands and wait for the result. Route
// planning and POI fetches run in their own goroutines and post their results
// back, so the loop never waits on the network.
type Tracker struct {
	cfg     TrackerConfig
	ledger  TripCommitter
	drafts  repository.DraftRepository
	planner Planner
	nearby  PointsRefresher
	view    mapview.View

	now       func() time.Time
	newTicker func(time.Duration) Ticker
	log       *logrus.Entry

	cmds    chan func()
	events  chan func()
	stopped chan struct{}

	// Owned by the Run goroutine.
	runCtx      context.Context
	state       TrackerState
	trip        *domain.Trip
	elapsed     int64
	anchor      *domain.Coordinate
	lastKnown   *domain.Coordinate
	lastRefresh *domain.Coordinate
	route       *domain.RouteResult
	stepIdx     int
	pickup      string
	dropoff     string
	planGen     uint64
	tick        Ticker
	draftTick   Ticker
}

// NewTracker creates a Tracker. Call Run to start it.
func NewTracker(cfg TrackerConfig, deps TrackerDeps, opts ...TrackerOption) *Tracker {
	view := deps.View
	if view == nil {
		view = mapview.Nop{}
	}

	t := &Tracker{
		cfg:       cfg,
		ledger:    deps.Ledger,
		drafts:    deps.Drafts,
		planner:   deps.Planner,
		nearby:    deps.Nearby,
		view:      view,
		now:       time.Now,
		newTicker: NewTimeTicker,
		log:       logrus.WithField("component", "tracker"),
		cmds:      make(chan func()),
		events:    make(chan func(), 16),
		stopped:   make(chan struct{}),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run processes commands until ctx is done. An active trip is saved as a
// draft on the way out.
func (t *Tracker) Run(ctx context.Context) {
	t.runCtx = ctx
	defer close(t.stopped)

	for {
		select {
		case cmd := <-t.cmds:
			cmd()

		case ev := <-t.events:
			ev()

		case <-tickC(t.tick):
			t.elapsed++

		case <-tickC(t.draftTick):
			t.saveDraft(ctx)

		case <-ctx.Done():
			if t.state == StateActive {
				saveCtx, cancel := context.WithTimeout(context.Background(), shutdownDraftTimeout)
				t.saveDraft(saveCtx)
				cancel()
			}
			t.stopTickers()
			t.log.Info("tracker stopped")
			return
		}
	}
}

func tickC(tk Ticker) <-chan time.Time {
	if tk == nil {
		return nil
	}
	return tk.C()
}

// do runs fn on the loop goroutine and waits for it to finish.
func (t *Tracker) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}

	select {
	case t.cmds <- cmd:
	case <-t.stopped:
		return ErrTrackerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

// post queues fn for the loop goroutine. It reports false if the loop has stopped.
func (t *Tracker) post(fn func()) bool {
	select {
	case t.events <- fn:
		return true
	case <-t.stopped:
		return false
	}
}

// UpdatePosition ingests one raw device position.
func (t *Tracker) UpdatePosition(ctx context.Context, pos domain.Position) error {
	if !geo.Valid(pos.Coordinate) {
		return ErrInvalidLocation
	}
	return t.do(ctx, func() { t.handlePosition(pos.Coordinate) })
}

func (t *Tracker) handlePosition(p domain.Coordinate) {
	t.lastKnown = &p

	if t.state == StateActive {
		t.advanceInstruction(p)
		t.accumulate(p)
	} else {
		t.maybeRefreshNearby(p)
	}

	t.view.Center(p)
	t.view.MovePositionMarker(p)
}

// advanceInstruction moves the step pointer to the first step past the
// nearest route point. The pointer only moves forward.
func (t *Tracker) advanceInstruction(p domain.Coordinate) {
	if t.route == nil || len(t.route.Steps) == 0 {
		return
	}

	nearest := geo.NearestIndex(p, t.route.Path)
	if nearest < 0 {
		return
	}

	for i, step := range t.route.Steps {
		if step.Index > nearest {
			if i > t.stepIdx {
				t.stepIdx = i
				t.log.WithFields(logrus.Fields{
					"step":        i,
					"instruction": step.Instruction,
				}).Debug("instruction advanced")
			}
			return
		}
	}
}

// accumulate adds the movement since the last retained sample. Movement
// below the noise threshold is discarded entirely.
func (t *Tracker) accumulate(p domain.Coordinate) {
	if t.anchor != nil {
		d := geo.DistanceKm(*t.anchor, p)
		if d < t.cfg.MinMovementKm {
			return
		}
		t.trip.DistanceKm = geo.Round2(t.trip.DistanceKm + d)
	}

	t.trip.Path = append(t.trip.Path, p)
	t.anchor = &p
	t.view.SetTraveledPath(t.trip.Path)
}

func (t *Tracker) maybeRefreshNearby(p domain.Coordinate) {
	if t.nearby == nil {
		return
	}
	if t.lastRefresh != nil && geo.DistanceKm(*t.lastRefresh, p) <= t.cfg.POIRefreshKm {
		return
	}
	if t.nearby.Refresh(t.runCtx, p) {
		t.lastRefresh = &p
	}
}

// StartTripRequest contains the parameters for starting a trip.
type StartTripRequest struct {
	Pickup        string // empty uses the pickup from the last plan
	Dropoff       string
	PaymentMethod domain.PaymentMethod
	CustomerID    string
	Notes         string
}

// StartTrip moves IDLE to ACTIVE.
func (t *Tracker) StartTrip(ctx context.Context, req StartTripRequest) (*domain.Trip, error) {
	var trip *domain.Trip
	var err error

	if doErr := t.do(ctx, func() { trip, err = t.start(ctx, req) }); doErr != nil {
		return nil, doErr
	}
	return trip, err
}

func (t *Tracker) start(ctx context.Context, req StartTripRequest) (*domain.Trip, error) {
	if t.state == StateActive {
		return nil, ErrTripAlreadyActive
	}

	pickup := strings.TrimSpace(req.Pickup)
	if pickup == "" {
		pickup = t.pickup
	}
	if pickup == "" {
		return nil, ErrMissingPickup
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	if dropoff := strings.TrimSpace(req.Dropoff); dropoff != "" {
		t.dropoff = dropoff
	}
	t.pickup = pickup

	t.trip = &domain.Trip{
		ID:            uuid.New().String(),
		StartedAt:     t.now(),
		Pickup:        pickup,
		Dropoff:       t.dropoff,
		PaymentMethod: method,
		CustomerID:    strings.TrimSpace(req.CustomerID),
		Notes:         strings.TrimSpace(req.Notes),
		Path:          []domain.Coordinate{},
		Status:        domain.TripStatusActive,
	}
	t.elapsed = 0
	t.anchor = nil
	if t.lastKnown != nil {
		origin := *t.lastKnown
		t.anchor = &origin
	}
	t.state = StateActive
	t.startTickers()
	t.saveDraft(ctx)

	t.log.WithFields(logrus.Fields{
		"trip_id": t.trip.ID,
		"pickup":  pickup,
		"has_gps": t.anchor != nil,
	}).Info("trip started")

	return t.trip.Clone(), nil
}

// EndTripRequest contains the parameters for completing a trip.
type EndTripRequest struct {
	Fare          float64
	Dropoff       string
	PaymentMethod domain.PaymentMethod // empty keeps the method chosen at start
	CustomerID    string
	Notes         string
}

// EndTrip validates the fare, commits the finalized trip to the ledger and
// returns to IDLE. On any error the trip stays ACTIVE and untouched.
func (t *Tracker) EndTrip(ctx context.Context, req EndTripRequest) (*domain.Trip, error) {
	var trip *domain.Trip
	var err error

	if doErr := t.do(ctx, func() { trip, err = t.end(ctx, req) }); doErr != nil {
		return nil, doErr
	}
	return trip, err
}

func (t *Tracker) end(ctx context.Context, req EndTripRequest) (*domain.Trip, error) {
	if t.state != StateActive {
		return nil, ErrNoActiveTrip
	}

	if math.IsNaN(req.Fare) || math.IsInf(req.Fare, 0) || req.Fare <= 0 {
		return nil, ErrInvalidFare
	}

	final := t.trip.Clone()
	if req.PaymentMethod != "" {
		if !req.PaymentMethod.Valid() {
			return nil, ErrInvalidPaymentMethod
		}
		final.PaymentMethod = req.PaymentMethod
	}

	endedAt := t.now()
	final.EndedAt = &endedAt
	final.Status = domain.TripStatusCompleted
	final.Fare = req.Fare
	final.Commission = geo.Round2(req.Fare * t.cfg.CommissionRate)
	final.FuelCostEstimate = geo.Round2(final.DistanceKm * t.cfg.FuelCostPerKm)

	final.Dropoff = strings.TrimSpace(req.Dropoff)
	if final.Dropoff == "" {
		final.Dropoff = t.trip.Dropoff
	}
	if final.Dropoff == "" {
		final.Dropoff = domain.DropoffUnspecified
	}
	if id := strings.TrimSpace(req.CustomerID); id != "" {
		final.CustomerID = id
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		final.Notes = notes
	}

	log := t.log.WithField("trip_id", final.ID)

	commitCtx, cancel := t.storeCtx(ctx)
	err := t.ledger.CommitTrip(commitCtx, final)
	cancel()
	if err != nil {
		log.WithError(err).Error("trip could not be saved, keeping it active")
		if !errors.Is(err, ErrLedgerUnavailable) {
			err = fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
		return nil, err
	}

	t.deleteDraft(ctx)
	t.reset()

	log.WithFields(logrus.Fields{
		"fare":        final.Fare,
		"distance_km": final.DistanceKm,
		"samples":     len(final.Path),
	}).Info("trip completed")

	return final, nil
}

// AbandonTrip discards the active trip without recording it.
func (t *Tracker) AbandonTrip(ctx context.Context) (*domain.Trip, error) {
	var trip *domain.Trip
	var err error

	doErr := t.do(ctx, func() {
		if t.state != StateActive {
			err = ErrNoActiveTrip
			return
		}
		trip = t.trip.Clone()
		t.deleteDraft(ctx)
		t.reset()
		t.log.WithField("trip_id", trip.ID).Info("trip abandoned")
	})
	if doErr != nil {
		return nil, doErr
	}
	return trip, err
}

// reset returns every piece of live state to its IDLE default.
func (t *Tracker) reset() {
	t.stopTickers()
	t.state = StateIdle
	t.trip = nil
	t.elapsed = 0
	t.anchor = nil
	t.route = nil
	t.stepIdx = 0
	t.pickup = ""
	t.dropoff = ""
	// Any plan still in flight belongs to the finished trip.
	t.planGen++

	t.view.SetTraveledPath(nil)
	t.view.SetRoute(nil)
	t.view.SetDestination(nil)
}

type planOutcome struct {
	route *domain.RouteResult
	err   error
}

// PlanRoute plans a route and installs it as the current route. A call that
// is overtaken by a newer one returns ErrRouteSuperseded and changes nothing;
// a failed call leaves the previous route in place.
func (t *Tracker) PlanRoute(ctx context.Context, pickup, dropoff string) (*domain.RouteResult, error) {
	reply := make(chan planOutcome, 1)

	err := t.do(ctx, func() {
		t.planGen++
		gen := t.planGen

		if p := strings.TrimSpace(pickup); p != "" {
			t.pickup = p
		}
		t.dropoff = strings.TrimSpace(dropoff)

		req := PlanRequest{Pickup: pickup, Dropoff: dropoff}
		if t.lastKnown != nil {
			last := *t.lastKnown
			req.LastKnown = &last
		}

		go t.runPlan(ctx, gen, req, reply)
	})
	if err != nil {
		return nil, err
	}

	select {
	case out := <-reply:
		return out.route, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Tracker) runPlan(ctx context.Context, gen uint64, req PlanRequest, reply chan<- planOutcome) {
	route, err := t.planner.Plan(ctx, req)
	if !t.post(func() { t.applyPlan(gen, route, err, reply) }) {
		reply <- planOutcome{err: ErrTrackerStopped}
	}
}

func (t *Tracker) applyPlan(gen uint64, route *domain.RouteResult, err error, reply chan<- planOutcome) {
	if gen != t.planGen {
		t.log.WithField("generation", gen).Debug("discarding superseded route")
		reply <- planOutcome{err: ErrRouteSuperseded}
		return
	}

	if err != nil {
		t.log.WithError(err).Warn("route planning failed, keeping previous route")
		reply <- planOutcome{err: err}
		return
	}

	t.route = route
	t.stepIdx = 0

	end := route.End
	t.view.SetDestination(&end)
	t.view.SetRoute(route.Path)
	t.view.FitBounds(route.Start, route.End)

	t.log.WithFields(logrus.Fields{
		"steps":       len(route.Steps),
		"points":      len(route.Path),
		"distance_km": geo.Round2(route.DistanceMeters / 1000),
	}).Info("route planned")

	reply <- planOutcome{route: cloneRoute(route)}
}

func cloneRoute(r *domain.RouteResult) *domain.RouteResult {
	c := *r
	c.Path = append([]domain.Coordinate(nil), r.Path...)
	c.Steps = append([]domain.RouteStep(nil), r.Steps...)
	return &c
}

// TrackingSnapshot is a read-only view of the live state.
type TrackingSnapshot struct {
	State           TrackerState       `json:"state"`
	Trip            *domain.Trip       `json:"trip,omitempty"`
	ElapsedSeconds  int64              `json:"elapsed_seconds"`
	DistanceKm      float64            `json:"distance_km"`
	PathLength      int                `json:"path_length"`
	StepIndex       int                `json:"step_index"`
	CurrentStep     *domain.RouteStep  `json:"current_step,omitempty"`
	Steps           []domain.RouteStep `json:"steps,omitempty"`
	RouteDistanceKm float64            `json:"route_distance_km"`
	Pickup          string             `json:"pickup,omitempty"`
	Dropoff         string             `json:"dropoff,omitempty"`
	LastKnown       *domain.Coordinate `json:"last_known,omitempty"`
}

// Snapshot returns a copy of the live state.
func (t *Tracker) Snapshot(ctx context.Context) (*TrackingSnapshot, error) {
	var snap *TrackingSnapshot
	if err := t.do(ctx, func() { snap = t.snapshot() }); err != nil {
		return nil, err
	}
	return snap, nil
}

func (t *Tracker) snapshot() *TrackingSnapshot {
	snap := &TrackingSnapshot{
		State:          t.state,
		ElapsedSeconds: t.elapsed,
		StepIndex:      t.stepIdx,
		Pickup:         t.pickup,
		Dropoff:        t.dropoff,
	}

	if t.trip != nil {
		snap.Trip = t.trip.Clone()
		snap.DistanceKm = t.trip.DistanceKm
		snap.PathLength = len(t.trip.Path)
	}

	if t.route != nil {
		snap.Steps = append([]domain.RouteStep(nil), t.route.Steps...)
		snap.RouteDistanceKm = geo.Round2(t.route.DistanceMeters / 1000)
		if t.stepIdx < len(t.route.Steps) {
			step := t.route.Steps[t.stepIdx]
			snap.CurrentStep = &step
		}
	}

	if t.lastKnown != nil {
		last := *t.lastKnown
		snap.LastKnown = &last
	}

	return snap
}

// Restore resumes an ACTIVE trip saved by a previous process. Time spent
// while the process was down counts toward the elapsed time.
func (t *Tracker) Restore(ctx context.Context) (*domain.Trip, error) {
	var trip *domain.Trip
	var err error

	if doErr := t.do(ctx, func() { trip, err = t.restore(ctx) }); doErr != nil {
		return nil, doErr
	}
	return trip, err
}

func (t *Tracker) restore(ctx context.Context) (*domain.Trip, error) {
	if t.drafts == nil {
		return nil, nil
	}
	if t.state == StateActive {
		return nil, ErrTripAlreadyActive
	}

	loadCtx, cancel := t.storeCtx(ctx)
	draft, err := t.drafts.LoadDraft(loadCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, nil
	}
	if draft.Trip == nil || draft.Trip.Status != domain.TripStatusActive {
		t.deleteDraft(ctx)
		return nil, nil
	}

	t.trip = draft.Trip.Clone()
	if t.trip.Path == nil {
		t.trip.Path = []domain.Coordinate{}
	}
	t.elapsed = draft.ElapsedSeconds
	if !draft.SavedAt.IsZero() {
		if down := t.now().Sub(draft.SavedAt); down > 0 {
			t.elapsed += int64(down / time.Second)
		}
	}

	t.anchor = nil
	switch {
	case draft.Anchor != nil:
		anchor := *draft.Anchor
		t.anchor = &anchor
	case len(t.trip.Path) > 0:
		anchor := t.trip.Path[len(t.trip.Path)-1]
		t.anchor = &anchor
	}

	t.pickup = t.trip.Pickup
	t.dropoff = t.trip.Dropoff
	t.state = StateActive
	t.startTickers()
	t.view.SetTraveledPath(t.trip.Path)

	t.log.WithFields(logrus.Fields{
		"trip_id": t.trip.ID,
		"elapsed": t.elapsed,
	}).Info("active trip restored from draft")

	return t.trip.Clone(), nil
}

func (t *Tracker) startTickers() {
	t.stopTickers()
	t.tick = t.newTicker(t.cfg.TickInterval)
	if t.drafts != nil && t.cfg.DraftSaveInterval > 0 {
		t.draftTick = t.newTicker(t.cfg.DraftSaveInterval)
	}
}

func (t *Tracker) stopTickers() {
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
	if t.draftTick != nil {
		t.draftTick.Stop()
		t.draftTick = nil
	}
}

func (t *Tracker) saveDraft(ctx context.Context) {
	if t.drafts == nil || t.state != StateActive {
		return
	}

	draft := &domain.TripDraft{
		Trip:           t.trip.Clone(),
		ElapsedSeconds: t.elapsed,
		SavedAt:        t.now(),
	}
	if t.anchor != nil {
		anchor := *t.anchor
		draft.Anchor = &anchor
	}

	saveCtx, cancel := t.storeCtx(ctx)
	defer cancel()
	if err := t.drafts.SaveDraft(saveCtx, draft); err != nil {
		t.log.WithError(err).WithField("trip_id", t.trip.ID).Warn("draft save failed")
	}
}

func (t *Tracker) deleteDraft(ctx context.Context) {
	if t.drafts == nil {
		return
	}
	delCtx, cancel := t.storeCtx(ctx)
	defer cancel()
	if err := t.drafts.DeleteDraft(delCtx); err != nil {
		t.log.WithError(err).Warn("draft delete failed")
	}
}

// storeCtx derives the context for a single store call. Every store call
// blocks the run loop, so it must not outlive StoreTimeout.
func (t *Tracker) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.StoreTimeout)
}
