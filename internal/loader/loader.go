// Package loader parses the source CSV exports and bulk loads them into
// Postgres.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"store-uptime/internal/models"
)

// Sink receives parsed rows. *store.Store satisfies it.
type Sink interface {
	CopyObservations(ctx context.Context, obs []models.Observation) (int64, error)
	CopyBusinessHours(ctx context.Context, hours []models.BusinessHours) (int64, error)
	CopyTimezones(ctx context.Context, zones []models.StoreTimezone) (int64, error)
}

// Files names the CSV exports to import. Empty paths are skipped.
type Files struct {
	Observations  string
	BusinessHours string
	Timezones     string
}

// Load parses and imports every file in f. Files are independent: each one
// is fully parsed before anything from it is written.
func Load(ctx context.Context, sink Sink, f Files, log *zap.Logger) error {
	if f.Observations != "" {
		obs, err := parseFile(f.Observations, ParseObservations)
		if err != nil {
			return err
		}
		n, err := sink.CopyObservations(ctx, obs)
		if err != nil {
			return err
		}
		log.Info("observations imported", zap.String("file", f.Observations), zap.Int64("rows", n))
	}
	if f.BusinessHours != "" {
		hours, err := parseFile(f.BusinessHours, ParseBusinessHours)
		if err != nil {
			return err
		}
		n, err := sink.CopyBusinessHours(ctx, hours)
		if err != nil {
			return err
		}
		log.Info("business hours imported", zap.String("file", f.BusinessHours), zap.Int64("rows", n))
	}
	if f.Timezones != "" {
		zones, err := parseFile(f.Timezones, ParseTimezones)
		if err != nil {
			return err
		}
		n, err := sink.CopyTimezones(ctx, zones)
		if err != nil {
			return err
		}
		log.Info("timezones imported", zap.String("file", f.Timezones), zap.Int64("rows", n))
	}
	return nil
}

func parseFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	out, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ParseObservations reads store_id,status,timestamp_utc rows.
func ParseObservations(r io.Reader) ([]models.Observation, error) {
	var out []models.Observation
	err := readRows(r, [][]string{{"store_id"}, {"status"}, {"timestamp_utc"}}, func(f []string) error {
		status, err := models.ParseStoreStatus(f[1])
		if err != nil {
			return err
		}
		ts, err := ParseTimestamp(f[2])
		if err != nil {
			return err
		}
		out = append(out, models.Observation{StoreID: f[0], Status: status, Timestamp: ts})
		return nil
	})
	return out, err
}

// ParseBusinessHours reads store_id,day,start_time_local,end_time_local rows.
func ParseBusinessHours(r io.Reader) ([]models.BusinessHours, error) {
	var out []models.BusinessHours
	cols := [][]string{{"store_id"}, {"day", "dayofweek"}, {"start_time_local"}, {"end_time_local"}}
	err := readRows(r, cols, func(f []string) error {
		day, err := strconv.Atoi(f[1])
		if err != nil || !models.Weekday(day).Valid() {
			return fmt.Errorf("invalid day %q (want 0-6)", f[1])
		}
		start, err := models.ParseClock(f[2])
		if err != nil {
			return err
		}
		end, err := models.ParseClock(f[3])
		if err != nil {
			return err
		}
		out = append(out, models.BusinessHours{
			StoreID: f[0],
			Day:     models.Weekday(day),
			Window:  models.Window{Start: start, End: end},
		})
		return nil
	})
	return out, err
}

// ParseTimezones reads store_id,timezone rows.
func ParseTimezones(r io.Reader) ([]models.StoreTimezone, error) {
	var out []models.StoreTimezone
	err := readRows(r, [][]string{{"store_id"}, {"timezone", "timezone_str"}}, func(f []string) error {
		out = append(out, models.StoreTimezone{StoreID: f[0], Zone: f[1]})
		return nil
	})
	return out, err
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTimestamp accepts "YYYY-MM-DD HH:MM:SS[.ffffff] UTC" and RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), " UTC")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// readRows locates each wanted column by header name (any alias, case
// insensitive) and calls fn with the fields in wanted order.
func readRows(r io.Reader, wanted [][]string, fn func([]string) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("empty file")
	}
	if err != nil {
		return err
	}
	idx, err := columnIndex(header, wanted)
	if err != nil {
		return err
	}

	fields := make([]string, len(wanted))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := cr.FieldPos(0)
		for i, col := range idx {
			fields[i] = strings.TrimSpace(rec[col])
		}
		if err := fn(fields); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func columnIndex(header []string, wanted [][]string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		pos[h] = i
	}
	idx := make([]int, len(wanted))
	for i, aliases := range wanted {
		found := false
		for _, a := range aliases {
			if p, ok := pos[a]; ok {
				idx[i], found = p, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing column %q", aliases[0])
		}
	}
	return idx, nil
}
