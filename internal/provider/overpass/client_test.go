package overpass

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridelog/internal/domain"
)

var accra = domain.Coordinate{Lat: 5.6037, Lng: -0.1870}

func TestQuery(t *testing.T) {
	c := NewClient("http://unused", []string{"restaurant", "cafe", "office", "bad\"]"}, nil)

	q := c.Query(accra, 1000)

	assert.Contains(t, q, `node(around:1000,5.603700,-0.187000)[amenity~"^(restaurant|cafe)$"][name];`)
	assert.Contains(t, q, `[shop~"^(restaurant|cafe)$"]`)
	assert.Contains(t, q, `node(around:1000,5.603700,-0.187000)[office][name];`)
	assert.Contains(t, q, `way(around:1000,5.603700,-0.187000)[highway][name];`)
	assert.Contains(t, q, "out center;")
	assert.NotContains(t, q, "bad")
}

func TestNearby(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "[out:json]")

		_, _ = io.WriteString(w, `{"elements":[
			{"type":"node","lat":5.6040,"lon":-0.1865,"tags":{"name":"Papaye","amenity":"fast_food"}},
			{"type":"node","lat":5.6041,"lon":-0.1861,"tags":{"name":"Melcom","shop":"supermarket"}},
			{"type":"node","lat":5.6042,"lon":-0.1862,"tags":{"name":"MTN House","office":"company"}},
			{"type":"node","lat":5.6043,"lon":-0.1863,"tags":{"amenity":"cafe"}},
			{"type":"node","tags":{"name":"No coordinates","amenity":"cafe"}},
			{"type":"way","center":{"lat":5.6050,"lon":-0.1870},"tags":{"name":"Oxford Street","highway":"primary"}},
			{"type":"way","tags":{"name":"No center","highway":"residential"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, []string{"fast_food", "supermarket", "office"}, srv.Client())

	result, err := c.Nearby(context.Background(), accra, 1000)
	require.NoError(t, err)

	require.Len(t, result.POIs, 3)
	assert.Equal(t, "Papaye", result.POIs[0].Name)
	assert.Equal(t, "fast_food", result.POIs[0].Category)
	assert.Equal(t, "supermarket", result.POIs[1].Category)
	assert.Equal(t, "office", result.POIs[2].Category)

	require.Len(t, result.Streets, 1)
	assert.Equal(t, "Oxford Street", result.Streets[0].Name)
	assert.Equal(t, 5.6050, result.Streets[0].Lat)
}

func TestNearby_RateLimitedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, []string{"cafe"}, srv.Client())

	_, err := c.Nearby(context.Background(), accra, 1000)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNearby_NonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<?xml version=\"1.0\"?><osm><remark>runtime error</remark></osm>")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, []string{"cafe"}, srv.Client())

	_, err := c.Nearby(context.Background(), accra, 1000)
	assert.Error(t, err)
}
