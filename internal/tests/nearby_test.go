package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridelog/internal/domain"
	"ridelog/internal/mapview"
	"ridelog/internal/provider/overpass"
	"ridelog/internal/service"
)

// ──────────────────────────────────────────────
// NEARBY POINTS REFRESHER
// ──────────────────────────────────────────────

func nearbyResult() *overpass.Result {
	return &overpass.Result{
		POIs: []domain.POI{
			{Coordinate: accraMall, Name: "Accra Mall", Category: "mall"},
			{Coordinate: accra, Name: "", Category: "cafe"},
		},
		Streets: []domain.StreetLabel{
			{Coordinate: accra, Name: "Oxford Street"},
			{Coordinate: accra},
		},
	}
}

func TestNearby_BusyRefresherDropsCalls(t *testing.T) {
	t.Parallel()

	source := &MockPOISource{Result: nearbyResult(), Gate: make(chan struct{})}
	view := mapview.NewRecorder()
	refresher := service.NewNearbyRefresher(source, view, 1000)

	require.True(t, refresher.Refresh(context.Background(), accra))
	assert.True(t, refresher.Busy())
	assert.False(t, refresher.Refresh(context.Background(), accraMall))
	assert.False(t, refresher.Refresh(context.Background(), accraMall))

	close(source.Gate)
	require.Eventually(t, func() bool { return !refresher.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, source.Calls())

	cmd, ok := view.Last(mapview.CmdPOIs)
	require.True(t, ok)
	pois := cmd.Payload.([]domain.POI)
	require.Len(t, pois, 1)
	assert.Equal(t, "Accra Mall", pois[0].Name)

	cmd, ok = view.Last(mapview.CmdStreetLabels)
	require.True(t, ok)
	assert.Len(t, cmd.Payload.([]domain.StreetLabel), 1)

	// Free again once the fetch is done.
	assert.True(t, refresher.Refresh(context.Background(), accraMall))
	require.Eventually(t, func() bool { return !refresher.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, source.Calls())
}

func TestNearby_FailureLeavesOverlaysAlone(t *testing.T) {
	t.Parallel()

	source := &MockPOISource{Err: ErrMockTimeout}
	view := mapview.NewRecorder()
	refresher := service.NewNearbyRefresher(source, view, 1000)

	require.True(t, refresher.Refresh(context.Background(), accra))
	require.Eventually(t, func() bool { return !refresher.Busy() }, time.Second, 5*time.Millisecond)

	assert.Zero(t, view.Count(mapview.CmdPOIs))
	assert.Zero(t, view.Count(mapview.CmdStreetLabels))
}
