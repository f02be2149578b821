package uptime

import (
	"context"
	"fmt"

	"store-uptime/internal/models"
)

// ObservationSource returns every recorded observation of a store.
type ObservationSource interface {
	StoreObservations(ctx context.Context, storeID string) ([]models.Observation, error)
}

// Filter keeps the observations that fall inside a store's local business hours.
type Filter struct {
	obs   ObservationSource
	hours *HoursResolver
	zones *ZoneResolver
}

func NewFilter(obs ObservationSource, hours *HoursResolver, zones *ZoneResolver) *Filter {
	return &Filter{obs: obs, hours: hours, zones: zones}
}

// Observations returns the store's observations taken during business hours,
// in no particular order.
func (f *Filter) Observations(ctx context.Context, storeID string) ([]models.Observation, error) {
	all, err := f.obs.StoreObservations(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("load observations for store %s: %w", storeID, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	loc := f.zones.Resolve(ctx, storeID)
	week := f.hours.Resolve(ctx, storeID)

	kept := make([]models.Observation, 0, len(all))
	for _, o := range all {
		local := o.Timestamp.In(loc)
		if week[models.WeekdayOf(local)].Contains(models.ClockOf(local)) {
			kept = append(kept, o)
		}
	}
	return kept, nil
}
