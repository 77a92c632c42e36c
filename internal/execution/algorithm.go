package execution

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
)

// marketAlgorithm executes the whole target quantity immediately with one
// market venue order.
type marketAlgorithm struct {
	engine *Engine
}

func newMarketAlgorithm(engine *Engine) *marketAlgorithm {
	return &marketAlgorithm{engine: engine}
}

func (a *marketAlgorithm) ExecutionType() types.ExecutionType {
	return types.ExecutionTypeMarket
}

func (a *marketAlgorithm) OnExecutionOrder(ctx context.Context, order types.ExecutionOrder) error {
	_, err := a.engine.placeVenueOrder(ctx, order, types.OrderTypeMarket,
		order.TargetQuantity,
		optional.None[decimal.Decimal](),
		optional.None[decimal.Decimal]())

	return err
}

func (a *marketAlgorithm) OnMarketData(ctx context.Context, event types.MarketDataEvent) error {
	return nil
}

func (a *marketAlgorithm) OnExecutionOrderDone(ctx context.Context, executionOrderID string) {}

// limitAlgorithm rests one limit venue order at the execution order's limit
// price until it fills or is canceled.
type limitAlgorithm struct {
	engine *Engine
}

func newLimitAlgorithm(engine *Engine) *limitAlgorithm {
	return &limitAlgorithm{engine: engine}
}

func (a *limitAlgorithm) ExecutionType() types.ExecutionType {
	return types.ExecutionTypeLimit
}

func (a *limitAlgorithm) OnExecutionOrder(ctx context.Context, order types.ExecutionOrder) error {
	_, err := a.engine.placeVenueOrder(ctx, order, types.OrderTypeLimit,
		order.TargetQuantity,
		order.LimitPrice,
		order.LimitPrice)

	return err
}

func (a *limitAlgorithm) OnMarketData(ctx context.Context, event types.MarketDataEvent) error {
	return nil
}

func (a *limitAlgorithm) OnExecutionOrderDone(ctx context.Context, executionOrderID string) {}
