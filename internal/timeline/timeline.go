// Package timeline groups audit-trail events by calendar day for display.
package timeline

import (
	"sort"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

const (
	keyLayout   = "2006-01-02"
	labelLayout = "02/01/2006"
)

// Aggregator groups events using calendar days in a fixed location.
type Aggregator struct {
	Location *time.Location
}

// NewAggregator creates an aggregator for the given location. A nil
// location falls back to UTC.
func NewAggregator(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{Location: loc}
}

// GroupByDay partitions events by the calendar day of CreatedAt. Groups are
// ordered newest day first and events within a group newest first. The
// relative order of events with equal timestamps is unspecified. The input
// slice is not modified.
func (a *Aggregator) GroupByDay(events []domain.TimelineEvent) []domain.DateGroup {
	if len(events) == 0 {
		return []domain.DateGroup{}
	}

	byKey := make(map[string]*domain.DateGroup)
	for _, ev := range events {
		local := ev.CreatedAt.In(a.Location)
		key := local.Format(keyLayout)
		g, ok := byKey[key]
		if !ok {
			g = &domain.DateGroup{Key: key, Label: local.Format(labelLayout)}
			byKey[key] = g
		}
		g.Items = append(g.Items, ev)
	}

	groups := make([]domain.DateGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.SliceStable(g.Items, func(i, j int) bool {
			return g.Items[i].CreatedAt.After(g.Items[j].CreatedAt)
		})
		groups = append(groups, *g)
	}
	// Keys are YYYY-MM-DD, so lexical order is chronological.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key > groups[j].Key
	})
	return groups
}

// Flatten returns the events of the groups in display order.
func Flatten(groups []domain.DateGroup) []domain.TimelineEvent {
	var out []domain.TimelineEvent
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}
