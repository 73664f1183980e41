package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/okian/pitwall/internal/domain/types"
)

// EncodeCSV renders rows under the fixed header, in the order given.
func EncodeCSV(rows []types.FeatureRow, withRaceTime bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(types.Columns(withRaceTime)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.Record(withRaceTime)); err != nil {
			return nil, fmt.Errorf("write row %s: %w", r.Key(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWeatherCSV renders the per-race weather table in the order given.
func EncodeWeatherCSV(rows []types.WeatherRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(types.WeatherColumns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.Record()); err != nil {
			return nil, fmt.Errorf("write race %d: %w", r.RaceID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}
