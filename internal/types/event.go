package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventTag identifies the concrete type of an event on the bus.
type EventTag string

const (
	TagMarketData              EventTag = "market_data"
	TagInsight                 EventTag = "insight"
	TagSignal                  EventTag = "signal"
	TagAllocation              EventTag = "allocation"
	TagExecutionOrderSubmitted EventTag = "execution_order_submitted"
	TagExecutionOrderUpdated   EventTag = "execution_order_updated"
	TagExecutionOrderRejected  EventTag = "execution_order_rejected"
	TagVenueOrderPlaced        EventTag = "venue_order_placed"
	TagVenueOrderUpdated       EventTag = "venue_order_updated"
	TagBalanceUpdate           EventTag = "balance_update"
	TagPositionUpdate          EventTag = "position_update"
	TagAccountUpdate           EventTag = "account_update"
)

// EventClass is the coarse classification used by subscription filters.
type EventClass string

const (
	ClassMarketData  EventClass = "MARKET_DATA"
	ClassInsight     EventClass = "INSIGHT"
	ClassPersistable EventClass = "PERSISTABLE"
	ClassSimulation  EventClass = "SIMULATION"
)

// Event is the discriminated union carried by the bus. Every event carries its
// own CompositeIndex so subscribers can order state by the event itself rather
// than by bus delivery order, which is only guaranteed per subscriber.
type Event interface {
	Tag() EventTag
	Class() EventClass
	EventIndex() CompositeIndex
}

// MarketDataEvent carries one top-of-book observation for an instrument.
type MarketDataEvent struct {
	Index     CompositeIndex  `json:"index"`
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	EventTime time.Time       `json:"event_time"`
}

func (e MarketDataEvent) Tag() EventTag { return TagMarketData }
func (e MarketDataEvent) Class() EventClass { return ClassMarketData }
func (e MarketDataEvent) EventIndex() CompositeIndex { return e.Index }

// Mid returns the mid price of the observation.
func (e MarketDataEvent) Mid() decimal.Decimal {
	return e.Bid.Add(e.Ask).Div(decimal.NewFromInt(2))
}

// InsightEvent carries one computed feature value. The feature pipeline that
// produces insights is an external collaborator.
type InsightEvent struct {
	Index     CompositeIndex  `json:"index"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	EventTime time.Time       `json:"event_time"`
}

func (e InsightEvent) Tag() EventTag { return TagInsight }
func (e InsightEvent) Class() EventClass { return ClassInsight }
func (e InsightEvent) EventIndex() CompositeIndex { return e.Index }

// SignalEvent is a strategy's directional output derived from insights.
// Direction is in [-1, 1].
type SignalEvent struct {
	Index        CompositeIndex  `json:"index"`
	Symbol       string          `json:"symbol"`
	StrategyName string          `json:"strategy_name"`
	Direction    decimal.Decimal `json:"direction"`
	EventTime    time.Time       `json:"event_time"`
}

func (e SignalEvent) Tag() EventTag { return TagSignal }
func (e SignalEvent) Class() EventClass { return ClassPersistable }
func (e SignalEvent) EventIndex() CompositeIndex { return e.Index }

// AllocationEvent is a sizing decision converting a signal into a target
// quantity for an instrument.
type AllocationEvent struct {
	Index          CompositeIndex  `json:"index"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	TargetQuantity decimal.Decimal `json:"target_quantity"`
	ExecutionType  ExecutionType   `json:"execution_type"`
	StrategyName   string          `json:"strategy_name"`
	EventTime      time.Time       `json:"event_time"`
}

func (e AllocationEvent) Tag() EventTag { return TagAllocation }
func (e AllocationEvent) Class() EventClass { return ClassPersistable }
func (e AllocationEvent) EventIndex() CompositeIndex { return e.Index }

// ExecutionOrderEvent carries an execution order snapshot. Kind distinguishes
// submission, updates and terminal rejection.
type ExecutionOrderEvent struct {
	Index     CompositeIndex `json:"index"`
	Kind      EventTag       `json:"kind"`
	Order     ExecutionOrder `json:"order"`
	Reason    string         `json:"reason"`
	Simulated bool           `json:"simulated"`
}

func (e ExecutionOrderEvent) Tag() EventTag { return e.Kind }

func (e ExecutionOrderEvent) Class() EventClass {
	if e.Simulated {
		return ClassSimulation
	}

	return ClassPersistable
}

func (e ExecutionOrderEvent) EventIndex() CompositeIndex { return e.Index }

// VenueOrderEvent carries a venue order snapshot plus the fill that caused the
// update, when there was one.
type VenueOrderEvent struct {
	Index     CompositeIndex `json:"index"`
	Kind      EventTag       `json:"kind"`
	Order     VenueOrder     `json:"order"`
	Fill      *Fill          `json:"fill,omitempty"`
	Simulated bool           `json:"simulated"`
}

func (e VenueOrderEvent) Tag() EventTag { return e.Kind }

func (e VenueOrderEvent) Class() EventClass {
	if e.Simulated {
		return ClassSimulation
	}

	return ClassPersistable
}

func (e VenueOrderEvent) EventIndex() CompositeIndex { return e.Index }

// BalanceUpdateEvent wraps a settled balance fact for bus delivery.
type BalanceUpdateEvent struct {
	Update BalanceUpdate `json:"update"`
}

func (e BalanceUpdateEvent) Tag() EventTag { return TagBalanceUpdate }

func (e BalanceUpdateEvent) Class() EventClass {
	if e.Update.Simulated {
		return ClassSimulation
	}

	return ClassPersistable
}

func (e BalanceUpdateEvent) EventIndex() CompositeIndex { return e.Update.Index }

// PositionUpdateEvent wraps a settled position fact for bus delivery.
type PositionUpdateEvent struct {
	Update PositionUpdate `json:"update"`
}

func (e PositionUpdateEvent) Tag() EventTag { return TagPositionUpdate }

func (e PositionUpdateEvent) Class() EventClass {
	if e.Update.Simulated {
		return ClassSimulation
	}

	return ClassPersistable
}

func (e PositionUpdateEvent) EventIndex() CompositeIndex { return e.Update.Index }

// AccountUpdateEvent carries an account snapshot from the accounting service.
type AccountUpdateEvent struct {
	Snapshot AccountSnapshot `json:"snapshot"`
}

func (e AccountUpdateEvent) Tag() EventTag { return TagAccountUpdate }
func (e AccountUpdateEvent) Class() EventClass { return ClassPersistable }
func (e AccountUpdateEvent) EventIndex() CompositeIndex { return e.Snapshot.AsOf }
