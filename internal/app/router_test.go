package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridelog/internal/domain"
	"ridelog/internal/handler"
	"ridelog/internal/mapview"
	internalRedis "ridelog/internal/redis"
	"ridelog/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGeocoder map[string]domain.Coordinate

func (s stubGeocoder) Geocode(ctx context.Context, text string) (domain.Coordinate, error) {
	if c, ok := s[text]; ok {
		return c, nil
	}
	return domain.Coordinate{}, errors.New("no results")
}

type stubRouter struct{}

func (stubRouter) Directions(ctx context.Context, start, end domain.Coordinate) (*domain.RouteResult, error) {
	return &domain.RouteResult{
		Start:          start,
		End:            end,
		Path:           []domain.Coordinate{start, end},
		Steps:          []domain.RouteStep{{Instruction: "Head north", Turn: domain.TurnStraight, Index: 0}},
		DistanceMeters: 2500,
	}, nil
}

// newTestRouter wires the full API over miniredis-backed stores.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ledger := service.NewLedgerService(
		internalRedis.NewTripStore(client, 50),
		internalRedis.NewExpenseStore(client, 100),
		internalRedis.NewCustomerStore(client, 100),
	)
	resolver := service.NewLocationResolver(stubGeocoder{
		"Osu":        {Lat: 5.556, Lng: -0.182},
		"Accra Mall": {Lat: 5.6219, Lng: -0.1733},
	}, internalRedis.NewGeocodeCache(client, 0), "My Current Location")

	hub := mapview.NewHub()
	tracker := service.NewTracker(service.TrackerConfig{
		MinMovementKm:     0.005,
		POIRefreshKm:      0.75,
		TickInterval:      time.Second,
		DraftSaveInterval: 15 * time.Second,
		CommissionRate:    0.20,
		StoreTimeout:      time.Second,
	}, service.TrackerDeps{
		Ledger:  ledger,
		Drafts:  internalRedis.NewDraftStore(client),
		Planner: service.NewRoutePlanner(resolver, stubRouter{}),
		View:    hub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	go tracker.Run(ctx)
	t.Cleanup(cancel)

	return NewRouter(RouterDeps{
		TrackingHandler: handler.NewTrackingHandler(tracker, resolver),
		LedgerHandler:   handler.NewLedgerHandler(ledger, service.NewInsightService(ledger, nil, "Drive safe.")),
		MapHub:          hub,
		RedisClient:     client,
	})
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_TripLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, "/v1/positions", `{"lat": 5.556, "lng": -0.182}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodPost, "/v1/positions", `{"lat": 5.556}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/tracking/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/tracking/route", `{"pickup": "My Current Location", "dropoff": "Accra Mall"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/v1/tracking/start", `{"pickup": "Osu", "payment_method": "card"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started domain.Trip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, domain.PaymentMethodCard, started.PaymentMethod)
	assert.Equal(t, "Accra Mall", started.Dropoff)

	w = do(router, http.MethodPost, "/v1/tracking/start", `{"pickup": "Osu"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, "/v1/tracking/end", `{"fare": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/v1/tracking", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap service.TrackingSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, service.StateActive, snap.State)
	assert.Len(t, snap.Steps, 1)

	w = do(router, http.MethodPost, "/v1/tracking/end", `{"fare": 50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ended domain.Trip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ended))
	assert.Equal(t, domain.TripStatusCompleted, ended.Status)
	assert.Equal(t, 10.0, ended.Commission)

	w = do(router, http.MethodPost, "/v1/tracking/end", `{"fare": 50}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodGet, "/v1/trips", "")
	require.Equal(t, http.StatusOK, w.Code)
	var trips []domain.Trip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trips))
	require.Len(t, trips, 1)
	assert.Equal(t, started.ID, trips[0].ID)

	w = do(router, http.MethodGet, "/v1/trips/"+started.ID+"/receipt?format=text", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NET:         40.00")

	w = do(router, http.MethodGet, "/v1/trips/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodDelete, "/v1/trips/"+started.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_PlanRouteUnknownDestination(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/v1/tracking/route", `{"pickup": "Osu", "dropoff": "Atlantis"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// No GPS fix and no resolvable pickup.
	w = do(router, http.MethodPost, "/v1/tracking/route", `{"pickup": "My Current Location", "dropoff": "Accra Mall"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouter_GeocodeExpensesCustomersInsight(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/v1/geocode?q=Accra+Mall&field=dropoff", "")
	require.Equal(t, http.StatusOK, w.Code)
	var geo handler.GeocodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &geo))
	assert.True(t, geo.Found)
	require.NotNil(t, geo.Point)
	assert.Equal(t, 5.6219, geo.Point.Lat)

	w = do(router, http.MethodGet, "/v1/geocode?q=My+Current+Location", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"found":false`)

	w = do(router, http.MethodPost, "/v1/expenses", `{"category": "fuel", "amount": 120}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(router, http.MethodPost, "/v1/expenses", `{"category": "fuel", "amount": -3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/v1/expenses", "")
	require.Equal(t, http.StatusOK, w.Code)
	var expenses []domain.Expense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &expenses))
	require.Len(t, expenses, 1)
	assert.Equal(t, domain.ExpenseFuel, expenses[0].Category)

	w = do(router, http.MethodPost, "/v1/customers", `{"name": "Ama", "phone": "0244000000"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/v1/customers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Ama"`)

	w = do(router, http.MethodGet, "/v1/insights", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"insight": "Drive safe."}`, w.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodOptions, "/v1/tracking/start", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestKeyspace(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cmd  redis.Cmder
		want string
	}{
		{redis.NewStringCmd(ctx, "get", "ridelog:trips"), "trips"},
		{redis.NewStringCmd(ctx, "get", "ridelog:geocode:accra mall"), "geocode"},
		{redis.NewStatusCmd(ctx, "set", "ridelog:idempotency:POST:/v1/tracking/end:k1", "x"), "idempotency"},
		{redis.NewStringCmd(ctx, "get", "other:key"), ""},
		{redis.NewStatusCmd(ctx, "ping"), ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, keyspace(tt.cmd), "%v", tt.cmd.Args())
	}
}
