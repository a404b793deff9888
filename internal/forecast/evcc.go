package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"batteryctl/internal/logger"
	"batteryctl/internal/model"
)

// EvccClient talks to a local evcc instance: live site readings from
// /api/state and the grid tariff forecast from /api/tariff.
type EvccClient struct {
	BaseURL string

	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewEvccClient(baseURL string) *EvccClient {
	return &EvccClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 4),
		log:     logger.New("evcc-client"),
	}
}

// EvccState is the subset of the evcc state document this system consumes.
type EvccState struct {
	Live model.LiveState

	// TariffGrid is the current effective grid price if evcc reports one.
	TariffGrid *float64

	// Forecast holds the priced intervals embedded in the state document,
	// ready for Normalize.
	Forecast []RawSlot
}

type evccSiteFields struct {
	BatterySoc *float64 `json:"batterySoc"`
	PVPower    *float64 `json:"pvPower"`
	GridPower  *float64 `json:"gridPower"`
}

type evccStatePayload struct {
	evccSiteFields
	Site *evccSiteFields `json:"site"`

	TariffGrid            *float64 `json:"tariffGrid"`
	TariffPriceLoadpoints *float64 `json:"tariffPriceLoadpoints"`
	TariffPriceHome       *float64 `json:"tariffPriceHome"`
	GridPrice             *float64 `json:"gridPrice"`

	Forecast json.RawMessage `json:"forecast"`
}

type evccForecastEntry struct {
	Start *time.Time `json:"start"`
	From  *time.Time `json:"from"`
	End   *time.Time `json:"end"`
	To    *time.Time `json:"to"`
	Value *float64   `json:"value"`
	Price *float64   `json:"price"`
	Unit  string     `json:"unit"`
}

// State fetches the live site state. Site-level readings win over the
// top-level duplicates evcc keeps for backwards compatibility.
func (c *EvccClient) State(ctx context.Context) (*EvccState, error) {
	var payload evccStatePayload
	if err := c.get(ctx, "/api/state", &payload); err != nil {
		return nil, err
	}

	fields := payload.evccSiteFields
	if payload.Site != nil {
		if payload.Site.BatterySoc != nil {
			fields.BatterySoc = payload.Site.BatterySoc
		}
		if payload.Site.PVPower != nil {
			fields.PVPower = payload.Site.PVPower
		}
		if payload.Site.GridPower != nil {
			fields.GridPower = payload.Site.GridPower
		}
	}

	state := &EvccState{
		Live: model.LiveState{
			BatterySoc: fields.BatterySoc,
			PVPowerW:   fields.PVPower,
			GridPowerW: fields.GridPower,
		},
		Forecast: parseForecastSequences(payload.Forecast),
	}
	for _, v := range []*float64{payload.TariffGrid, payload.TariffPriceLoadpoints, payload.TariffPriceHome, payload.GridPrice} {
		if v != nil {
			state.TariffGrid = v
			break
		}
	}
	return state, nil
}

// TariffForecast fetches the standalone tariff document. The payload shape
// varies across evcc versions; parseTariffPayload handles the known ones.
func (c *EvccClient) TariffForecast(ctx context.Context) ([]RawSlot, error) {
	var payload json.RawMessage
	if err := c.get(ctx, "/api/tariff", &payload); err != nil {
		return nil, err
	}
	return parseTariffPayload(payload), nil
}

// CurrentPrice extracts the present grid price from a state document,
// falling back to the first forecast slot.
func CurrentPrice(state *EvccState) *float64 {
	if state == nil {
		return nil
	}
	if state.TariffGrid != nil {
		return state.TariffGrid
	}
	if len(state.Forecast) > 0 {
		price := scalePrice(state.Forecast[0].Price, state.Forecast[0].Unit)
		return &price
	}
	return nil
}

func (c *EvccClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build evcc request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// parseForecastSequences reads the "forecast" member of a state document.
// It is either a map of named sequences (grid, feedin, ...) or a bare list.
func parseForecastSequences(raw json.RawMessage) []RawSlot {
	if len(raw) == 0 {
		return nil
	}
	var sequences [][]evccForecastEntry

	var byName map[string][]evccForecastEntry
	if err := json.Unmarshal(raw, &byName); err == nil {
		for _, seq := range byName {
			sequences = append(sequences, seq)
		}
	} else {
		var flat []evccForecastEntry
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil
		}
		sequences = append(sequences, flat)
	}

	var out []RawSlot
	for _, seq := range sequences {
		for _, e := range seq {
			if slot, ok := entryToRawSlot(e); ok {
				out = append(out, slot)
			}
		}
	}
	return out
}

// parseTariffPayload accepts either a bare slot list or an object wrapping
// one under result/tariffs/prices/slots/data.
func parseTariffPayload(raw json.RawMessage) []RawSlot {
	if len(raw) == 0 {
		return nil
	}

	var entries []evccForecastEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entriesToRawSlots(entries)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	if inner, ok := wrapper["result"]; ok {
		return parseTariffPayload(inner)
	}
	for _, key := range []string{"tariffs", "prices", "slots", "data"} {
		if inner, ok := wrapper[key]; ok {
			if err := json.Unmarshal(inner, &entries); err == nil {
				return entriesToRawSlots(entries)
			}
		}
	}
	return nil
}

func entriesToRawSlots(entries []evccForecastEntry) []RawSlot {
	out := make([]RawSlot, 0, len(entries))
	for _, e := range entries {
		if slot, ok := entryToRawSlot(e); ok {
			out = append(out, slot)
		}
	}
	return out
}

func entryToRawSlot(e evccForecastEntry) (RawSlot, bool) {
	start := e.Start
	if start == nil {
		start = e.From
	}
	end := e.End
	if end == nil {
		end = e.To
	}
	price := e.Price
	if price == nil {
		price = e.Value
	}
	if start == nil || price == nil {
		return RawSlot{}, false
	}
	slot := RawSlot{Start: *start, Price: *price, Unit: e.Unit}
	if end != nil {
		slot.End = *end
	} else {
		// Hourly is the evcc default granularity.
		slot.End = start.Add(time.Hour)
	}
	return slot, true
}
