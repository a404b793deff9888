package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"batteryctl/internal/logger"
)

// DefaultMarketDataURL is the awattar day-ahead market data endpoint.
const DefaultMarketDataURL = "https://api.awattar.de/v1/marketdata"

// APIError is a non-2xx reply from a forecast provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// MarketClient fetches the day-ahead market price forecast. The endpoint is
// public and unauthenticated; the limiter keeps a misconfigured caller from
// hammering it.
type MarketClient struct {
	BaseURL string

	client  *http.Client
	limiter *rate.Limiter
	cache   *responseCache
	log     zerolog.Logger
}

func NewMarketClient(baseURL string) *MarketClient {
	if baseURL == "" {
		baseURL = DefaultMarketDataURL
	}
	return &MarketClient{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		cache:   newResponseCache(10 * time.Minute),
		log:     logger.New("market-client"),
	}
}

type marketEntry struct {
	StartTimestamp int64    `json:"start_timestamp"` // epoch milliseconds
	EndTimestamp   int64    `json:"end_timestamp"`
	MarketPrice    *float64 `json:"marketprice"`
	Unit           string   `json:"unit"`
}

type marketPayload struct {
	Data []marketEntry `json:"data"`
}

// Forecast returns the raw market slots overlapping [now, now+maxHours).
// Slots that already ended are dropped. The caller is expected to run the
// result through Normalize.
func (c *MarketClient) Forecast(ctx context.Context, maxHours float64) ([]RawSlot, error) {
	entries, err := c.fetchEntries(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	horizonEnd := now.Add(time.Duration(maxHours * float64(time.Hour)))

	raw := make([]RawSlot, 0, len(entries))
	for _, item := range entries {
		if item.StartTimestamp == 0 || item.MarketPrice == nil {
			continue
		}
		start := time.UnixMilli(item.StartTimestamp).UTC()
		end := start.Add(time.Hour)
		if item.EndTimestamp != 0 {
			end = time.UnixMilli(item.EndTimestamp).UTC()
		}
		if !end.After(now) {
			continue
		}
		if !start.Before(horizonEnd) {
			continue
		}
		raw = append(raw, RawSlot{Start: start, End: end, Price: *item.MarketPrice, Unit: item.Unit})
	}

	c.log.Debug().Int("slots", len(raw)).Msg("market forecast fetched")
	return raw, nil
}

// fetchEntries returns the upstream payload, served from the short-lived
// cache when it is still fresh.
func (c *MarketClient) fetchEntries(ctx context.Context) ([]marketEntry, error) {
	if entries, ok := c.cache.get(); ok {
		return entries, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build market data request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch market data: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("market data response")

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var payload marketPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode market data: %w", err)
	}

	c.cache.set(payload.Data)
	return payload.Data, nil
}
