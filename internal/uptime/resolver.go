package uptime

import (
	"context"
	"sync"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"store-uptime/internal/models"
)

// HoursSource returns the configured business hours rows of a store.
// Rows must come back in a stable order; the first row for a weekday wins.
type HoursSource interface {
	StoreBusinessHours(ctx context.Context, storeID string) ([]models.BusinessHours, error)
}

// ZoneSource returns the zone id recorded for a store, if any.
type ZoneSource interface {
	StoreTimezone(ctx context.Context, storeID string) (string, bool, error)
}

// HoursResolver fills a full week of business hours for a store.
type HoursResolver struct {
	src HoursSource
	log *zap.Logger
}

func NewHoursResolver(src HoursSource, log *zap.Logger) *HoursResolver {
	return &HoursResolver{src: src, log: log}
}

// Resolve returns a window for all seven weekdays. Days without a configured
// row, and every day when the lookup fails, are open all day.
func (r *HoursResolver) Resolve(ctx context.Context, storeID string) models.WeeklyHours {
	var week models.WeeklyHours
	var seen [7]bool
	for d := range week {
		week[d] = models.AllDay
	}

	rows, err := r.src.StoreBusinessHours(ctx, storeID)
	if err != nil {
		r.log.Warn("business hours lookup failed, assuming open all day",
			zap.String("store_id", storeID), zap.Error(err))
		return week
	}
	for _, row := range rows {
		if !row.Day.Valid() || seen[row.Day] {
			continue
		}
		seen[row.Day] = true
		week[row.Day] = row.Window
	}
	return week
}

// ZoneResolver maps stores to a loaded *time.Location.
type ZoneResolver struct {
	src      ZoneSource
	fallback *time.Location
	log      *zap.Logger

	mu    sync.Mutex
	cache map[string]*time.Location
}

// NewZoneResolver builds a resolver falling back to defaultZone. An unknown
// defaultZone falls back to models.DefaultTimezone.
func NewZoneResolver(src ZoneSource, defaultZone string, log *zap.Logger) (*ZoneResolver, error) {
	if defaultZone == "" {
		defaultZone = models.DefaultTimezone
	}
	loc, err := time.LoadLocation(defaultZone)
	if err != nil {
		return nil, err
	}
	return &ZoneResolver{
		src:      src,
		fallback: loc,
		log:      log,
		cache:    map[string]*time.Location{defaultZone: loc},
	}, nil
}

// Resolve never fails: missing records, lookup errors and unknown zone ids
// all resolve to the default zone.
func (r *ZoneResolver) Resolve(ctx context.Context, storeID string) *time.Location {
	zone, found, err := r.src.StoreTimezone(ctx, storeID)
	if err != nil {
		r.log.Warn("timezone lookup failed, using default",
			zap.String("store_id", storeID), zap.Error(err))
		return r.fallback
	}
	if !found || zone == "" {
		return r.fallback
	}
	return r.load(storeID, zone)
}

func (r *ZoneResolver) load(storeID, zone string) *time.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loc, ok := r.cache[zone]; ok {
		return loc
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		r.log.Warn("unknown timezone, using default",
			zap.String("store_id", storeID), zap.String("zone", zone), zap.Error(err))
		loc = r.fallback
	}
	r.cache[zone] = loc
	return loc
}
