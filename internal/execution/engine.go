// Package execution decides when venue orders are created, replaced and
// canceled for each execution order. Algorithms are a closed set of variants
// (market, limit, wide quoting) selected by the execution order's type; all
// venue interaction funnels through one place/cancel path that enforces the
// rate and notional limits, bounded retry, and timeout reconciliation.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/orderbook"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/internal/venue"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IndexSource stamps outgoing events with the engine's total order.
type IndexSource interface {
	NextIndex(timestamp time.Time) types.CompositeIndex
}

// Deps carries the collaborators shared by every execution algorithm.
type Deps struct {
	Gateway   venue.Gateway
	VenueBook *orderbook.VenueOrderBook
	ExecBook  *orderbook.ExecutionOrderBook
	Limits    *Limits
	Retry     RetryPolicy
	Index     IndexSource
	Publish   func(event types.Event)
	Log       *logger.Logger
	// Simulated marks all emitted events as paper-trading output.
	Simulated bool
}

// Algorithm is one execution strategy variant. The set is closed: variants
// are constructed by NewEngine from the execution order's type, never
// registered dynamically.
type Algorithm interface {
	// ExecutionType identifies the variant.
	ExecutionType() types.ExecutionType
	// OnExecutionOrder is called once when a new execution order of this
	// variant is submitted.
	OnExecutionOrder(ctx context.Context, order types.ExecutionOrder) error
	// OnMarketData is called for every market update.
	OnMarketData(ctx context.Context, event types.MarketDataEvent) error
	// OnExecutionOrderDone is called when the execution order reaches a
	// terminal state, so the variant can release per-order state.
	OnExecutionOrderDone(ctx context.Context, executionOrderID string)
}

// Engine routes execution orders and market data to the algorithm variants
// and owns the fill bookkeeping shared by all of them.
type Engine struct {
	deps  Deps
	algos map[types.ExecutionType]Algorithm
}

// NewEngine builds the engine with its closed set of algorithm variants.
func NewEngine(deps Deps, quoteParams WideQuoteParams) *Engine {
	engine := &Engine{
		deps:  deps,
		algos: make(map[types.ExecutionType]Algorithm),
	}

	for _, algo := range []Algorithm{
		newMarketAlgorithm(engine),
		newLimitAlgorithm(engine),
		NewWideQuoter(engine, quoteParams),
	} {
		engine.algos[algo.ExecutionType()] = algo
	}

	return engine
}

// Submit registers a new execution order and hands it to its variant. A
// failure is reported as an execution-order-level rejection event and
// returned; it never crashes the caller.
func (e *Engine) Submit(ctx context.Context, order types.ExecutionOrder) error {
	algo, ok := e.algos[order.ExecutionType]
	if !ok {
		return errors.Newf(errors.ErrCodeInvalidExecutionType,
			"no algorithm for execution type %s", order.ExecutionType)
	}

	if err := e.deps.ExecBook.Add(order); err != nil {
		return err
	}

	e.publishExecution(types.TagExecutionOrderSubmitted, order, "")

	if err := algo.OnExecutionOrder(ctx, order); err != nil {
		e.rejectExecution(order.ID, err)
		return err
	}

	return nil
}

// OnMarketData forwards the update to every algorithm variant.
func (e *Engine) OnMarketData(ctx context.Context, event types.MarketDataEvent) error {
	for _, algo := range e.algos {
		if err := algo.OnMarketData(ctx, event); err != nil {
			e.deps.Log.Error("algorithm market data handling failed",
				zap.String("execution_type", string(algo.ExecutionType())),
				zap.Error(err))
		}
	}

	return nil
}

// OnFill applies a venue fill to both order books, publishes the resulting
// order events and releases algorithm state for completed execution orders.
// Duplicate deliveries fold to a zero delta and publish nothing, and the
// published fill carries the applied delta rather than the raw venue quantity,
// so downstream settlement sees each fill exactly once and never more than the
// order's remaining quantity.
func (e *Engine) OnFill(ctx context.Context, fill types.Fill) error {
	order, delta, err := e.deps.VenueBook.ApplyFill(fill)
	if err != nil {
		return err
	}

	if delta.IsZero() {
		return nil
	}

	applied := fill
	applied.Quantity = delta
	e.publishVenue(types.TagVenueOrderUpdated, order, &applied)

	parent, err := e.deps.ExecBook.ApplyChildFill(order.ID, delta)
	if err != nil {
		return err
	}

	e.publishExecution(types.TagExecutionOrderUpdated, parent, "")

	if parent.Status.IsTerminal() {
		if algo, ok := e.algos[parent.ExecutionType]; ok {
			algo.OnExecutionOrderDone(ctx, parent.ID)
		}
	}

	return nil
}

// CancelExecution cancels every live child of the execution order and moves
// it to its terminal Canceled state.
func (e *Engine) CancelExecution(ctx context.Context, executionOrderID string) error {
	parent, err := e.deps.ExecBook.Get(executionOrderID)
	if err != nil {
		return err
	}

	for _, childID := range e.deps.ExecBook.Children(executionOrderID) {
		child, err := e.deps.VenueBook.Get(childID)
		if err != nil || child.Status.IsTerminal() {
			continue
		}

		if _, err := e.cancelVenueOrder(ctx, child); err != nil {
			e.deps.Log.Warn("cancel of child order failed",
				zap.String("venue_order_id", childID), zap.Error(err))
		}
	}

	canceled, err := e.deps.ExecBook.Cancel(executionOrderID)
	if err != nil {
		return err
	}

	e.publishExecution(types.TagExecutionOrderUpdated, canceled, "canceled")

	if algo, ok := e.algos[parent.ExecutionType]; ok {
		algo.OnExecutionOrderDone(ctx, executionOrderID)
	}

	return nil
}

// CancelAllForSymbol cancels every active execution order on the symbol.
// Used by risk halts.
func (e *Engine) CancelAllForSymbol(ctx context.Context, symbol string) error {
	var firstErr error

	for _, order := range e.deps.ExecBook.Active() {
		if order.Symbol != symbol {
			continue
		}

		if err := e.CancelExecution(ctx, order.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// placeVenueOrder runs the shared placement path: limit checks, book
// registration, venue call with bounded retry, and timeout reconciliation.
// On an unknown outcome the venue is queried; an order the venue does not
// know is treated as never placed and canceled locally.
func (e *Engine) placeVenueOrder(
	ctx context.Context,
	parent types.ExecutionOrder,
	orderType types.OrderType,
	quantity decimal.Decimal,
	price optional.Option[decimal.Decimal],
	referencePrice optional.Option[decimal.Decimal],
) (types.VenueOrder, error) {
	if price.IsSome() {
		if err := e.deps.Limits.CheckNotional(quantity, price.Unwrap()); err != nil {
			return types.VenueOrder{}, err
		}
	}

	if err := e.deps.Limits.ReserveOrder(); err != nil {
		return types.VenueOrder{}, err
	}

	now := time.Now().UTC()
	order := types.VenueOrder{
		ID:               uuid.New().String(),
		ExecutionOrderID: parent.ID,
		Symbol:           parent.Symbol,
		Side:             parent.Side,
		OrderType:        orderType,
		Quantity:         quantity,
		Status:           types.VenueOrderStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
		Price:            price,
		ReferencePrice:   referencePrice,
	}

	if err := e.deps.VenueBook.Add(order); err != nil {
		return types.VenueOrder{}, err
	}

	if err := e.deps.ExecBook.AttachChild(parent.ID, order.ID); err != nil {
		return types.VenueOrder{}, err
	}

	order, err := e.deps.VenueBook.Transition(order.ID, types.VenueOrderStatusSend)
	if err != nil {
		return types.VenueOrder{}, err
	}

	e.publishVenue(types.TagVenueOrderPlaced, order, nil)

	err = e.deps.Retry.Do(ctx, func() error {
		return e.deps.Gateway.PlaceOrder(ctx, order)
	})

	switch {
	case err == nil:
		return e.ackVenueOrder(order.ID)

	case errors.HasCode(err, errors.ErrCodeVenueTimeout):
		// Unknown outcome: ask the venue before deciding.
		known, reconcileErr := e.venueKnowsOrder(ctx, order)
		if reconcileErr != nil {
			return order, reconcileErr
		}

		if known {
			return e.ackVenueOrder(order.ID)
		}

		order, _ = e.deps.VenueBook.Transition(order.ID, types.VenueOrderStatusCanceled)
		e.publishVenue(types.TagVenueOrderUpdated, order, nil)

		return order, err

	default:
		order, _ = e.deps.VenueBook.Transition(order.ID, types.VenueOrderStatusRejected)
		e.publishVenue(types.TagVenueOrderUpdated, order, nil)

		return order, err
	}
}

func (e *Engine) ackVenueOrder(orderID string) (types.VenueOrder, error) {
	order, err := e.deps.VenueBook.Transition(orderID, types.VenueOrderStatusAccepted)
	if err != nil {
		// A fill can beat the ack when the venue is fast; the book already
		// moved on, which is fine.
		return e.deps.VenueBook.Get(orderID)
	}

	e.publishVenue(types.TagVenueOrderUpdated, order, nil)

	return order, nil
}

// cancelVenueOrder cancels a live order with reconciliation on timeout. It
// returns whether the cancel is confirmed: on an unknown outcome the venue is
// queried first, and at most one follow-up cancel is issued.
func (e *Engine) cancelVenueOrder(ctx context.Context, order types.VenueOrder) (bool, error) {
	err := e.deps.Retry.Do(ctx, func() error {
		return e.deps.Gateway.CancelOrder(ctx, order.ID)
	})

	switch {
	case err == nil:
		return true, e.confirmCancel(order.ID)

	case errors.HasCode(err, errors.ErrCodeVenueTimeout):
		open, reconcileErr := e.deps.Gateway.OpenOrders(ctx, order.Symbol)
		if reconcileErr != nil {
			return false, reconcileErr
		}

		for _, candidate := range open {
			if candidate.ID != order.ID {
				continue
			}

			// Still live at the venue: one follow-up cancel, no retry loop.
			if secondErr := e.deps.Gateway.CancelOrder(ctx, order.ID); secondErr != nil {
				return false, secondErr
			}

			return true, e.confirmCancel(order.ID)
		}

		// The venue no longer knows the order, so the first cancel landed.
		return true, e.confirmCancel(order.ID)

	case errors.HasCode(err, errors.ErrCodeVenueRejected):
		// The venue says the order is unknown or closed; verify it is really
		// gone before treating the cancel as confirmed.
		known, reconcileErr := e.venueKnowsOrder(ctx, order)
		if reconcileErr != nil {
			return false, reconcileErr
		}

		if !known {
			return true, e.confirmCancel(order.ID)
		}

		return false, err

	default:
		return false, err
	}
}

func (e *Engine) confirmCancel(orderID string) error {
	order, err := e.deps.VenueBook.Transition(orderID, types.VenueOrderStatusCanceled)
	if err != nil {
		// Terminal already (a fill raced the cancel): the anomaly is logged
		// by the book, nothing to undo.
		return nil
	}

	e.publishVenue(types.TagVenueOrderUpdated, order, nil)

	return nil
}

func (e *Engine) venueKnowsOrder(ctx context.Context, order types.VenueOrder) (bool, error) {
	open, err := e.deps.Gateway.OpenOrders(ctx, order.Symbol)
	if err != nil {
		return false, err
	}

	for _, candidate := range open {
		if candidate.ID == order.ID {
			return true, nil
		}
	}

	return false, nil
}

func (e *Engine) rejectExecution(executionOrderID string, cause error) {
	order, err := e.deps.ExecBook.Reject(executionOrderID)
	if err != nil {
		e.deps.Log.Warn("could not reject execution order",
			zap.String("execution_order_id", executionOrderID), zap.Error(err))
		return
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	e.publishExecution(types.TagExecutionOrderRejected, order, reason)
}

func (e *Engine) publishExecution(kind types.EventTag, order types.ExecutionOrder, reason string) {
	if e.deps.Publish == nil {
		return
	}

	e.deps.Publish(types.ExecutionOrderEvent{
		Index:     e.deps.Index.NextIndex(time.Now().UTC()),
		Kind:      kind,
		Order:     order,
		Reason:    reason,
		Simulated: e.deps.Simulated,
	})
}

func (e *Engine) publishVenue(kind types.EventTag, order types.VenueOrder, fill *types.Fill) {
	if e.deps.Publish == nil {
		return
	}

	e.deps.Publish(types.VenueOrderEvent{
		Index:     e.deps.Index.NextIndex(time.Now().UTC()),
		Kind:      kind,
		Order:     order,
		Fill:      fill,
		Simulated: e.deps.Simulated,
	})
}
