package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ridelog/internal/domain"
	"ridelog/internal/provider/overpass"
	"ridelog/internal/repository"
	"ridelog/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips []*domain.Trip

	// Counters for verification
	SaveCallCount int32

	// Error injection
	SaveError   error
	GetAllError error

	// SaveGate, when set, holds every Save until it is closed or the
	// caller's context ends.
	SaveGate chan struct{}
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{}
}

// SetSaveError changes the injected save error.
func (m *MockTripRepository) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveError = err
}

// HoldSaves makes every Save block until the returned release func is called.
func (m *MockTripRepository) HoldSaves() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.SaveGate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (m *MockTripRepository) Save(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	m.mu.RLock()
	gate := m.SaveGate
	m.mu.RUnlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	for i, t := range m.trips {
		if t.ID == trip.ID {
			m.trips[i] = trip.Clone()
			return nil
		}
	}
	m.trips = append(m.trips, trip.Clone())
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.trips {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockTripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	out := make([]*domain.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (m *MockTripRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.trips {
		if t.ID == id {
			m.trips = append(m.trips[:i], m.trips[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// CountTrips returns the number of stored trips (for test assertions).
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

// ──────────────────────────────────────────────
// MOCK EXPENSE REPOSITORY
// ──────────────────────────────────────────────

// MockExpenseRepository is a mock implementation of ExpenseRepository.
type MockExpenseRepository struct {
	mu       sync.RWMutex
	expenses []*domain.Expense

	// Error injection
	SaveError error
}

// NewMockExpenseRepository creates a new mock expense repository.
func NewMockExpenseRepository() *MockExpenseRepository {
	return &MockExpenseRepository{}
}

func (m *MockExpenseRepository) Save(ctx context.Context, expense *domain.Expense) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *expense
	m.expenses = append(m.expenses, &copy)
	return nil
}

func (m *MockExpenseRepository) GetAll(ctx context.Context) ([]*domain.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Expense, len(m.expenses))
	copy(out, m.expenses)
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK CUSTOMER REPOSITORY
// ──────────────────────────────────────────────

// MockCustomerRepository is a mock implementation of CustomerRepository.
type MockCustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
	order     []string

	// Counters for verification
	SaveCallCount int32

	// Error injection
	SaveError error
}

// NewMockCustomerRepository creates a new mock customer repository.
func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[string]*domain.Customer),
	}
}

// AddCustomer adds a customer to the mock repository.
func (m *MockCustomerRepository) AddCustomer(customer *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[customer.ID]; !ok {
		m.order = append(m.order, customer.ID)
	}
	copy := *customer
	m.customers[customer.ID] = &copy
}

func (m *MockCustomerRepository) Save(ctx context.Context, customer *domain.Customer) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.AddCustomer(customer)
	return nil
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

func (m *MockCustomerRepository) GetAll(ctx context.Context) ([]*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Customer, 0, len(m.order))
	for _, id := range m.order {
		copy := *m.customers[id]
		out = append(out, &copy)
	}
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK DRAFT REPOSITORY
// ──────────────────────────────────────────────

// MockDraftRepository is a mock implementation of DraftRepository.
type MockDraftRepository struct {
	mu    sync.Mutex
	draft *domain.TripDraft

	// Counters for verification
	SaveCallCount   int32
	DeleteCallCount int32

	// Error injection
	SaveError error
}

// NewMockDraftRepository creates a new mock draft repository.
func NewMockDraftRepository() *MockDraftRepository {
	return &MockDraftRepository{}
}

func (m *MockDraftRepository) SaveDraft(ctx context.Context, draft *domain.TripDraft) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *draft
	copy.Trip = draft.Trip.Clone()
	m.draft = &copy
	return nil
}

func (m *MockDraftRepository) LoadDraft(ctx context.Context) (*domain.TripDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return nil, nil
	}
	copy := *m.draft
	copy.Trip = m.draft.Trip.Clone()
	return &copy, nil
}

func (m *MockDraftRepository) DeleteDraft(ctx context.Context) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = nil
	return nil
}

// Draft returns the stored draft (for test assertions).
func (m *MockDraftRepository) Draft() *domain.TripDraft {
	d, _ := m.LoadDraft(context.Background())
	return d
}

// ──────────────────────────────────────────────
// MOCK GEOCODER
// ──────────────────────────────────────────────

// MockGeocoder is a mock Geocoder answering from a fixed table.
type MockGeocoder struct {
	mu     sync.Mutex
	places map[string]domain.Coordinate

	// Gate, when set, blocks every call until it is closed.
	Gate chan struct{}

	// Counters for verification
	CallCount int32
}

// NewMockGeocoder creates a geocoder that knows the given places.
func NewMockGeocoder(places map[string]domain.Coordinate) *MockGeocoder {
	return &MockGeocoder{places: places}
}

func (m *MockGeocoder) Geocode(ctx context.Context, text string) (domain.Coordinate, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return domain.Coordinate{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coord, ok := m.places[text]
	if !ok {
		return domain.Coordinate{}, ErrMockNoResults
	}
	return coord, nil
}

// Calls returns how many lookups were made.
func (m *MockGeocoder) Calls() int {
	return int(atomic.LoadInt32(&m.CallCount))
}

// ──────────────────────────────────────────────
// MOCK GEOCODE CACHE
// ──────────────────────────────────────────────

// MockGeocodeCache is an in-memory GeocodeCache.
type MockGeocodeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Coordinate
}

// NewMockGeocodeCache creates an empty cache.
func NewMockGeocodeCache() *MockGeocodeCache {
	return &MockGeocodeCache{entries: make(map[string]domain.Coordinate)}
}

func (m *MockGeocodeCache) Get(ctx context.Context, text string) (domain.Coordinate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[text]
	return c, ok, nil
}

func (m *MockGeocodeCache) Put(ctx context.Context, text string, coord domain.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[text] = coord
	return nil
}

// ──────────────────────────────────────────────
// MOCK ROUTER
// ──────────────────────────────────────────────

// MockRouter is a mock Router returning a fixed route.
type MockRouter struct {
	Route *domain.RouteResult
	Err   error

	// Counters for verification
	CallCount int32

	mu    sync.Mutex
	calls [][2]domain.Coordinate
}

func (m *MockRouter) Directions(ctx context.Context, start, end domain.Coordinate) (*domain.RouteResult, error) {
	atomic.AddInt32(&m.CallCount, 1)
	m.mu.Lock()
	m.calls = append(m.calls, [2]domain.Coordinate{start, end})
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Route, nil
}

// LastCall returns the endpoints of the most recent request.
func (m *MockRouter) LastCall() (start, end domain.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return
	}
	last := m.calls[len(m.calls)-1]
	return last[0], last[1]
}

// ──────────────────────────────────────────────
// MOCK PLANNER
// ──────────────────────────────────────────────

// MockPlanner is a mock Planner whose behavior is set per test.
type MockPlanner struct {
	PlanFunc func(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error)

	// Counters for verification
	CallCount int32
}

func (m *MockPlanner) Plan(ctx context.Context, req service.PlanRequest) (*domain.RouteResult, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.PlanFunc == nil {
		return nil, service.ErrRouteUnavailable
	}
	return m.PlanFunc(ctx, req)
}

// ──────────────────────────────────────────────
// MOCK POI SOURCE
// ──────────────────────────────────────────────

// MockPOISource is a mock POISource.
type MockPOISource struct {
	Result *overpass.Result
	Err    error

	// Gate, when set, blocks every call until it is closed.
	Gate chan struct{}

	// Counters for verification
	CallCount int32
}

func (m *MockPOISource) Nearby(ctx context.Context, center domain.Coordinate, radiusM int) (*overpass.Result, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.Gate != nil {
		<-m.Gate
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// Calls returns how many fetches were made.
func (m *MockPOISource) Calls() int {
	return int(atomic.LoadInt32(&m.CallCount))
}

// ──────────────────────────────────────────────
// MOCK POINTS REFRESHER
// ──────────────────────────────────────────────

// MockRefresher records every refresh request the tracker makes.
type MockRefresher struct {
	mu        sync.Mutex
	positions []domain.Coordinate
}

func (m *MockRefresher) Refresh(ctx context.Context, position domain.Coordinate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, position)
	return true
}

// Positions returns the positions refreshes were requested for.
func (m *MockRefresher) Positions() []domain.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Coordinate(nil), m.positions...)
}

// ──────────────────────────────────────────────
// MANUAL TICKERS AND CLOCK
// ──────────────────────────────────────────────

// ManualTicker is a Ticker that only fires when told to.
type ManualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() { m.stopped.Store(true) }

// Stopped reports whether Stop was called.
func (m *ManualTicker) Stopped() bool { return m.stopped.Load() }

// TickerFactory hands out ManualTickers and remembers the latest one per interval.
type TickerFactory struct {
	mu      sync.Mutex
	tickers map[time.Duration]*ManualTicker
}

// NewTickerFactory creates an empty factory.
func NewTickerFactory() *TickerFactory {
	return &TickerFactory{tickers: make(map[time.Duration]*ManualTicker)}
}

// New satisfies the tracker's ticker factory signature.
func (f *TickerFactory) New(d time.Duration) service.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk := &ManualTicker{ch: make(chan time.Time)}
	f.tickers[d] = tk
	return tk
}

// Ticker returns the latest ticker created for interval d.
func (f *TickerFactory) Ticker(d time.Duration) *ManualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[d]
}

// Fire delivers one tick on the latest ticker for interval d and reports
// whether the tracker took it.
func (f *TickerFactory) Fire(d time.Duration) bool {
	tk := f.Ticker(d)
	if tk == nil {
		return false
	}
	select {
	case tk.ch <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

// ManualClock is a settable clock.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock stopped at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current fake time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockNoResults = errors.New("mock: no results")
	ErrMockTimeout   = errors.New("mock: operation timeout")
)
