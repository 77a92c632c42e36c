package services

import (
	"context"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// IndexSource stamps emitted events with the engine's total order.
type IndexSource interface {
	NextIndex(timestamp time.Time) types.CompositeIndex
}

// AllocationRule sizes signals for one instrument. BaseQuantity is scaled by
// the signal's direction magnitude and rounded down to the lot size.
type AllocationRule struct {
	Instrument    types.Instrument
	BaseQuantity  decimal.Decimal
	ExecutionType types.ExecutionType
}

// AllocationService converts strategy signals into sized allocations. Signals
// for instruments without a rule are dropped.
type AllocationService struct {
	bus   *eventbus.Bus
	rules map[string]AllocationRule
	index IndexSource
	log   *logger.Logger
}

func NewAllocationService(bus *eventbus.Bus, rules map[string]AllocationRule, index IndexSource, log *logger.Logger) *AllocationService {
	return &AllocationService{
		bus:   bus,
		rules: rules,
		index: index,
		log:   log,
	}
}

func (s *AllocationService) Name() string { return "allocation" }

func (s *AllocationService) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(eventbus.Tags(types.TagSignal))

	return runLoop(ctx, s.Name(), sub, s.log, s.handle)
}

func (s *AllocationService) handle(_ context.Context, event types.Event) error {
	signal, ok := event.(types.SignalEvent)
	if !ok {
		return nil
	}

	rule, ok := s.rules[signal.Symbol]
	if !ok {
		return nil
	}

	if signal.Direction.IsZero() {
		return nil
	}

	side := types.SideBuy
	if signal.Direction.Sign() < 0 {
		side = types.SideSell
	}

	quantity := rule.Instrument.RoundToLot(rule.BaseQuantity.Mul(signal.Direction.Abs()))
	if quantity.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder,
			"signal for %s sizes below one lot", signal.Symbol)
	}

	s.bus.Publish(types.AllocationEvent{
		Index:          s.index.NextIndex(time.Now().UTC()),
		Symbol:         signal.Symbol,
		Side:           side,
		TargetQuantity: quantity,
		ExecutionType:  rule.ExecutionType,
		StrategyName:   signal.StrategyName,
		EventTime:      signal.EventTime,
	})

	return nil
}
