package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"store-uptime/internal/models"
)

// CopyObservations bulk inserts status polls.
func (s *Store) CopyObservations(ctx context.Context, obs []models.Observation) (int64, error) {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"store_status"},
		[]string{"store_id", "status", "timestamp_utc"},
		pgx.CopyFromSlice(len(obs), func(i int) ([]any, error) {
			o := obs[i]
			return []any{o.StoreID, o.Status.String(), o.Timestamp.UTC()}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy observations: %w", err)
	}
	return n, nil
}

// CopyBusinessHours bulk inserts business hours windows.
func (s *Store) CopyBusinessHours(ctx context.Context, hours []models.BusinessHours) (int64, error) {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"business_hours"},
		[]string{"store_id", "day", "start_time_local", "end_time_local"},
		pgx.CopyFromSlice(len(hours), func(i int) ([]any, error) {
			h := hours[i]
			return []any{h.StoreID, int16(h.Day), timeFromClock(h.Start), timeFromClock(h.End)}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy business hours: %w", err)
	}
	return n, nil
}

// CopyTimezones bulk inserts store timezones.
func (s *Store) CopyTimezones(ctx context.Context, zones []models.StoreTimezone) (int64, error) {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"store_timezones"},
		[]string{"store_id", "timezone"},
		pgx.CopyFromSlice(len(zones), func(i int) ([]any, error) {
			return []any{zones[i].StoreID, zones[i].Zone}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy timezones: %w", err)
	}
	return n, nil
}
