package geodata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/symbolmap/internal/models"
)

const cityTemps = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-112.07, 33.45]},
      "properties": {"city": "Phoenix", "temp1950s": 90, "temp1960s": 95, "state": "AZ", "temp1970s": 101}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-97.74, 30.27]},
      "properties": {"city": "Austin", "temp1950s": 80, "temp1960s": 85, "state": "TX", "temp1970s": 88}
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]},
      "properties": {"city": "Nowhere"}
    }
  ]
}`

func fastClient(cache DatasetCache) *Client {
	return NewClient(ClientConfig{
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
		IdentityField:  "city",
	}, cache)
}

func TestDecode(t *testing.T) {
	fc, err := Decode("test", []byte(cityTemps), "city")
	require.NoError(t, err)

	require.Len(t, fc.Features, 2, "line string feature should be skipped")
	assert.Equal(t, "Phoenix", fc.Features[0].Identity)
	assert.Equal(t, "0", fc.Features[0].ID)
	assert.InDelta(t, -112.07, fc.Features[0].Lng, 1e-9)
	assert.InDelta(t, 33.45, fc.Features[0].Lat, 1e-9)
	assert.Equal(t, "Austin", fc.Features[1].Identity)

	v, err := fc.Features[1].Value("temp1960s")
	require.NoError(t, err)
	assert.Equal(t, 85.0, v)
}

func TestDecode_PropertyOrderFollowsDocument(t *testing.T) {
	fc, err := Decode("test", []byte(cityTemps), "city")
	require.NoError(t, err)

	assert.Equal(t, []string{"city", "temp1950s", "temp1960s", "state", "temp1970s"}, fc.PropertyOrder)
}

func TestDecode_PropertyOrderFromFirstKeptFeature(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"name":"road","rent_month_1":1}},
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[-97.74,30.27]},"properties":{"city":"Austin","temp1950s":80,"temp1960s":85}}
	]}`
	fc, err := Decode("test", []byte(body), "city")
	require.NoError(t, err)

	require.Len(t, fc.Features, 1)
	assert.Equal(t, []string{"city", "temp1950s", "temp1960s"}, fc.PropertyOrder)
}

func TestDecode_NumericIdentity(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[-89.4,43.07]},"properties":{"zipCode":53703,"rent_month_1":1450.5}}
	]}`
	fc, err := Decode("test", []byte(body), "zipCode")
	require.NoError(t, err)
	assert.Equal(t, "53703", fc.Features[0].Identity)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		stage string
	}{
		{"not json", `<html>`, "decode"},
		{"no point features", `{"type":"FeatureCollection","features":[]}`, "schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("test", []byte(tt.body), "city")
			var loadErr *models.DataLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.stage, loadErr.Stage)
		})
	}
}

func TestLoad_HTTPRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(cityTemps))
	}))
	defer server.Close()

	fc, err := fastClient(nil).Load(context.Background(), server.URL+"/data/big_city_temps.geojson")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoad_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := fastClient(nil).Load(context.Background(), server.URL)
	var loadErr *models.DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "fetch", loadErr.Stage)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big_city_temps.geojson")
	require.NoError(t, os.WriteFile(path, []byte(cityTemps), 0o644))

	fc, err := fastClient(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, fc.Source)

	fc, err = fastClient(nil).Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

type memoryCache struct {
	saved map[string][]byte
}

func (m *memoryCache) SaveDataset(_ context.Context, source string, body []byte, count int) (*models.Dataset, error) {
	m.saved[source] = body
	return &models.Dataset{ID: "d", Source: source, Body: body, FeatureCount: count, FetchedAt: time.Now()}, nil
}

func (m *memoryCache) LatestDataset(_ context.Context, source string) (*models.Dataset, error) {
	body, ok := m.saved[source]
	if !ok {
		return nil, errors.New("not cached")
	}
	return &models.Dataset{ID: "d", Source: source, Body: body, FetchedAt: time.Now()}, nil
}

func TestLoad_CacheFallback(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(cityTemps))
	}))
	defer server.Close()

	cache := &memoryCache{saved: map[string][]byte{}}
	client := fastClient(cache)

	_, err := client.Load(context.Background(), server.URL)
	require.NoError(t, err)
	require.Contains(t, cache.saved, server.URL)

	up.Store(false)
	fc, err := client.Load(context.Background(), server.URL)
	require.NoError(t, err, "cached copy should be used when the fetch fails")
	assert.Len(t, fc.Features, 2)
}

func TestLoad_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{MaxRetries: 5, RetryDelayBase: time.Hour, IdentityField: "city"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Load(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_BodyTooLarge(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(cityTemps))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
		IdentityField:  "city",
		MaxBodyBytes:   int64(len(cityTemps) - 1),
	}, nil)

	_, err := client.Load(context.Background(), server.URL)
	var loadErr *models.DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "fetch", loadErr.Stage)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "an oversized body is not retried")

	path := filepath.Join(t.TempDir(), "big.geojson")
	require.NoError(t, os.WriteFile(path, []byte(cityTemps), 0o644))
	_, err = client.Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestLoad_BodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cityTemps))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		MaxRetries:     1,
		RetryDelayBase: time.Millisecond,
		IdentityField:  "city",
		MaxBodyBytes:   int64(len(cityTemps)),
	}, nil)

	fc, err := client.Load(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}
