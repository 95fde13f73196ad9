package view

import (
	"sort"
	"time"

	"github.com/rickgao/streamcommerce-dash/internal/model"
)

// Charts is the input data of the two dashboard charts.
type Charts struct {
	EventTypes []model.TypeCount // distribution chart
	Activity   []HourCount       // events-per-hour chart, by hour ascending
}

// HourCount is the number of events created in one hour of the day.
type HourCount struct {
	Hour  int // 0-23 in the display zone
	Count int
}

// BuildCharts derives chart data from an event-type distribution and a
// list of recent events. Events whose time cannot be parsed are left out
// of the activity series.
func BuildCharts(eventTypes map[string]int64, events []model.Event, loc *time.Location) Charts {
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[int]int)
	for _, ev := range events {
		t, ok := ev.Time()
		if !ok {
			continue
		}
		buckets[t.In(loc).Hour()]++
	}

	activity := make([]HourCount, 0, len(buckets))
	for hour, count := range buckets {
		activity = append(activity, HourCount{Hour: hour, Count: count})
	}
	sort.Slice(activity, func(i, j int) bool { return activity[i].Hour < activity[j].Hour })

	return Charts{
		EventTypes: model.OrderEventTypes(eventTypes),
		Activity:   activity,
	}
}
