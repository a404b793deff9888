package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketClientForecast(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	past := now.Add(-2 * time.Hour)
	upcoming := now.Add(time.Hour)
	farOut := now.Add(100 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[
			{"start_timestamp":%d,"end_timestamp":%d,"marketprice":90.5,"unit":"Eur/MWh"},
			{"start_timestamp":%d,"end_timestamp":%d,"marketprice":110.0,"unit":"Eur/MWh"},
			{"start_timestamp":%d,"end_timestamp":%d,"marketprice":70.0,"unit":"Eur/MWh"},
			{"start_timestamp":0,"marketprice":55.0}
		]}`,
			past.UnixMilli(), past.Add(time.Hour).UnixMilli(),
			upcoming.UnixMilli(), upcoming.Add(time.Hour).UnixMilli(),
			farOut.UnixMilli(), farOut.Add(time.Hour).UnixMilli(),
		)
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL)
	raw, err := c.Forecast(context.Background(), 72)
	require.NoError(t, err)

	// Past and beyond-horizon slots are dropped, as is the entry without a
	// start timestamp.
	require.Len(t, raw, 1)
	assert.Equal(t, upcoming, raw[0].Start)
	assert.InDelta(t, 110.0, raw[0].Price, 1e-9)
	assert.Equal(t, "Eur/MWh", raw[0].Unit)

	slots := Normalize(raw, 0.02)
	require.Len(t, slots, 1)
	assert.InDelta(t, 0.13, slots[0].Price, 1e-9)
}

func TestMarketClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL)
	_, err := c.Forecast(context.Background(), 72)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestMarketClientCachesPayload(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	upcoming := now.Add(time.Hour)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"start_timestamp":%d,"end_timestamp":%d,"marketprice":110.0,"unit":"Eur/MWh"}]}`,
			upcoming.UnixMilli(), upcoming.Add(time.Hour).UnixMilli())
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL)

	for i := 0; i < 3; i++ {
		raw, err := c.Forecast(context.Background(), 72)
		require.NoError(t, err)
		require.Len(t, raw, 1)
	}
	assert.Equal(t, 1, hits)

	c.cache.clear()
	_, err := c.Forecast(context.Background(), 72)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestNewMarketClientDefaultURL(t *testing.T) {
	c := NewMarketClient("")
	assert.Equal(t, DefaultMarketDataURL, c.BaseURL)
}
