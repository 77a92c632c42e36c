package eventbus

import (
	"github.com/rxtech-lab/atlas-trading/internal/types"
)

// filterKind enumerates the closed set of subscription filters. The set is
// fixed at compile time, so dispatch is a switch rather than open-ended
// interfaces.
type filterKind int

const (
	filterAll filterKind = iota
	filterNone
	filterAllButMarketData
	filterPersistableOnly
	filterPersistableSimulationOnly
	filterInsightOnly
	filterTagSet
)

// EventFilter selects which events a subscriber receives.
type EventFilter struct {
	kind filterKind
	tags map[types.EventTag]struct{}
}

// All matches every event.
func All() EventFilter {
	return EventFilter{kind: filterAll}
}

// None matches no events.
func None() EventFilter {
	return EventFilter{kind: filterNone}
}

// AllButMarketData matches everything except market data, which is usually too
// high-volume for bookkeeping subscribers.
func AllButMarketData() EventFilter {
	return EventFilter{kind: filterAllButMarketData}
}

// PersistableOnly matches events classified as persistable.
func PersistableOnly() EventFilter {
	return EventFilter{kind: filterPersistableOnly}
}

// PersistableSimulationOnly matches persistable events produced by simulated
// (paper) trading.
func PersistableSimulationOnly() EventFilter {
	return EventFilter{kind: filterPersistableSimulationOnly}
}

// InsightOnly matches insight updates.
func InsightOnly() EventFilter {
	return EventFilter{kind: filterInsightOnly}
}

// Tags matches events whose tag is in the given set.
func Tags(tags ...types.EventTag) EventFilter {
	set := make(map[types.EventTag]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}

	return EventFilter{kind: filterTagSet, tags: set}
}

// Matches reports whether the filter selects the given event.
func (f EventFilter) Matches(event types.Event) bool {
	switch f.kind {
	case filterAll:
		return true
	case filterNone:
		return false
	case filterAllButMarketData:
		return event.Class() != types.ClassMarketData
	case filterPersistableOnly:
		return event.Class() == types.ClassPersistable
	case filterPersistableSimulationOnly:
		return event.Class() == types.ClassSimulation
	case filterInsightOnly:
		return event.Class() == types.ClassInsight
	case filterTagSet:
		_, ok := f.tags[event.Tag()]
		return ok
	default:
		return false
	}
}
