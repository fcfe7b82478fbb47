// Package handlers holds the built-in job handlers every worker registers
// alongside any application-specific ones.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ridgeline/jobqueue/internal/queue"
)

// Ping is a diagnostic handler that echoes its payload back.
func Ping(ctx context.Context, payload []byte) (any, error) {
	var p any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid ping payload: %v", queue.ErrInvalidInput, err)
		}
	}
	return map[string]any{"ok": true, "payload": p}, nil
}

type locationPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationUpsert returns a handler that validates a lat/lon pair, rounds it
// to a stable dedupe key, and upserts it into the locations table.
func LocationUpsert(db *sql.DB) queue.Handler {
	return func(ctx context.Context, payload []byte) (any, error) {
		var p locationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid location payload: %v", queue.ErrInvalidInput, err)
		}
		if p.Lat < -90 || p.Lat > 90 {
			return nil, fmt.Errorf("%w: lat %v out of range [-90,90]", queue.ErrInvalidInput, p.Lat)
		}
		if p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("%w: lon %v out of range [-180,180]", queue.ErrInvalidInput, p.Lon)
		}

		lat := roundTo3(p.Lat)
		lon := roundTo3(p.Lon)
		key := locationKey(lat, lon)

		var id int64
		err := db.QueryRowContext(ctx, `
			INSERT INTO locations (key, lat, lon) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET lat = EXCLUDED.lat, lon = EXCLUDED.lon
			RETURNING id`,
			key, lat, lon,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert location: %w", err)
		}

		return map[string]any{
			"locationId":  id,
			"locationKey": key,
			"lat":         lat,
			"lon":         lon,
		}, nil
	}
}

// roundTo3 rounds to 3 decimal places, with exact halves going to the even
// neighbour (so 0.0005 and -0.0005 both become 0), and normalizes negative
// zero to zero.
func roundTo3(v float64) float64 {
	r := math.RoundToEven(v*1000) / 1000
	if r == 0 {
		return 0
	}
	return r
}

// locationKey formats a rounded lat/lon pair as the dedupe key
// "<lat>,<lon>" with exactly 3 decimal places.
func locationKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}
