package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"batteryctl/internal/model"
)

var ledgerHeader = []string{
	"timestamp", "action", "target_soc", "reason", "price_snapshot", "soc", "applied",
}

// StateRecord is one line in the append-only decision ledger.
type StateRecord struct {
	Timestamp     time.Time
	Action        model.Action
	TargetSoc     int
	Reason        string
	PriceSnapshot float64
	Soc           *float64
	Applied       bool
}

// AppendStateRecord appends rec to the CSV ledger at path, writing the
// header first when the file is new or empty. Parent directories are
// created as needed.
func AppendStateRecord(path string, rec StateRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store.AppendStateRecord: create dir %q: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store.AppendStateRecord: open %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("store.AppendStateRecord: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("store.AppendStateRecord: write header: %w", err)
		}
	}

	soc := ""
	if rec.Soc != nil {
		soc = strconv.FormatFloat(*rec.Soc, 'f', 1, 64)
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	row := []string{
		ts.UTC().Format(time.RFC3339),
		string(rec.Action),
		strconv.Itoa(rec.TargetSoc),
		rec.Reason,
		strconv.FormatFloat(rec.PriceSnapshot, 'f', 5, 64),
		soc,
		strconv.FormatBool(rec.Applied),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("store.AppendStateRecord: write row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadStateRecords loads the full ledger at path. A missing file yields an
// empty slice, not an error.
func ReadStateRecords(path string) ([]StateRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store.ReadStateRecords: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("store.ReadStateRecords: parse %q: %w", path, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	records := make([]StateRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(ledgerHeader) {
			continue
		}
		rec := StateRecord{
			Action: model.Action(row[1]),
			Reason: row[3],
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, row[0])
		rec.TargetSoc, _ = strconv.Atoi(row[2])
		rec.PriceSnapshot, _ = strconv.ParseFloat(row[4], 64)
		if row[5] != "" {
			if soc, err := strconv.ParseFloat(row[5], 64); err == nil {
				rec.Soc = &soc
			}
		}
		rec.Applied, _ = strconv.ParseBool(row[6])
		records = append(records, rec)
	}
	return records, nil
}
