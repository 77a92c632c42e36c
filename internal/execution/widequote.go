package execution

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WideQuoteParams configures the wide quoting algorithm. SpreadFromMid is the
// fractional distance from the mid price at which quotes rest (buy below,
// sell above); RequotePriceMovePct is the fractional mid move from the quote's
// reference price that triggers a cancel/replace.
type WideQuoteParams struct {
	SpreadFromMid       decimal.Decimal `yaml:"spread_from_mid"`
	RequotePriceMovePct decimal.Decimal `yaml:"requote_price_move_pct"`
}

// quoteState is the per-execution-order state of the quoter. At most one
// venue order is ever live, and at most one cancel is in flight; a requote
// wanted while a cancel is unresolved is queued in pendingMid and replayed
// once the cancel confirms.
type quoteState struct {
	order          types.ExecutionOrder
	liveOrderID    string
	cancelInFlight bool
	pendingMid     optional.Option[decimal.Decimal]
}

// WideQuoter implements the wide quoting execution strategy: rest a single
// order SpreadFromMid away from the mid and cancel/replace when the mid moves
// by more than RequotePriceMovePct from the quote's reference price. Replace
// is cancel-then-place, never modify-in-place, because venues are not assumed
// to replace atomically.
type WideQuoter struct {
	engine *Engine
	params WideQuoteParams
	states map[string]*quoteState
}

// NewWideQuoter creates the wide quoting variant.
func NewWideQuoter(engine *Engine, params WideQuoteParams) *WideQuoter {
	return &WideQuoter{
		engine: engine,
		params: params,
		states: make(map[string]*quoteState),
	}
}

// ExecutionType identifies the variant.
func (w *WideQuoter) ExecutionType() types.ExecutionType {
	return types.ExecutionTypeWideQuoting
}

// OnExecutionOrder registers the order; the first quote is placed on the next
// market update for its symbol.
func (w *WideQuoter) OnExecutionOrder(ctx context.Context, order types.ExecutionOrder) error {
	w.states[order.ID] = &quoteState{order: order}

	return nil
}

// OnMarketData re-evaluates every quoted execution order on the instrument.
func (w *WideQuoter) OnMarketData(ctx context.Context, event types.MarketDataEvent) error {
	mid := event.Mid()
	if mid.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeNoMarketData, "non-positive mid for %s", event.Symbol)
	}

	for _, state := range w.states {
		if state.order.Symbol != event.Symbol {
			continue
		}

		w.evaluate(ctx, state, mid)
	}

	return nil
}

// OnExecutionOrderDone cancels any leftover quote and drops local state.
func (w *WideQuoter) OnExecutionOrderDone(ctx context.Context, executionOrderID string) {
	state, ok := w.states[executionOrderID]
	if !ok {
		return
	}

	delete(w.states, executionOrderID)

	if state.liveOrderID == "" || state.cancelInFlight {
		return
	}

	order, err := w.engine.deps.VenueBook.Get(state.liveOrderID)
	if err != nil || order.Status.IsTerminal() {
		return
	}

	if _, err := w.engine.cancelVenueOrder(ctx, order); err != nil {
		w.engine.deps.Log.Warn("failed to cancel leftover quote",
			zap.String("venue_order_id", state.liveOrderID), zap.Error(err))
	}
}

// targetPrice computes the quote price for the given mid: buys rest below the
// mid, sells above.
func (w *WideQuoter) targetPrice(side types.Side, mid decimal.Decimal) decimal.Decimal {
	offset := mid.Mul(w.params.SpreadFromMid)

	if side == types.SideBuy {
		return mid.Sub(offset)
	}

	return mid.Add(offset)
}

func (w *WideQuoter) evaluate(ctx context.Context, state *quoteState, mid decimal.Decimal) {
	if state.cancelInFlight {
		// One cancel at a time: remember the newest mid and try to resolve
		// the outstanding cancel first.
		state.pendingMid = optional.Some(mid)
		w.resolveCancel(ctx, state)

		return
	}

	if state.liveOrderID == "" {
		w.place(ctx, state, mid)

		return
	}

	live, err := w.engine.deps.VenueBook.Get(state.liveOrderID)
	if err != nil {
		state.liveOrderID = ""
		return
	}

	if live.Status.IsTerminal() {
		state.liveOrderID = ""

		if !state.order.Status.IsTerminal() {
			w.place(ctx, state, mid)
		}

		return
	}

	if live.ReferencePrice.IsNone() {
		return
	}

	reference := live.ReferencePrice.Unwrap()
	move := mid.Sub(reference).Abs().Div(reference)

	if move.LessThanOrEqual(w.params.RequotePriceMovePct) {
		return
	}

	// Mid moved enough: cancel, then place the replacement once confirmed.
	state.cancelInFlight = true
	state.pendingMid = optional.Some(mid)
	w.resolveCancel(ctx, state)
}

// resolveCancel drives the outstanding cancel for the state's live order.
// When the cancel confirms, the queued requote (if any) is placed; while it
// stays unresolved the state keeps cancelInFlight and later market updates
// retry.
func (w *WideQuoter) resolveCancel(ctx context.Context, state *quoteState) {
	live, err := w.engine.deps.VenueBook.Get(state.liveOrderID)
	if err != nil {
		state.cancelInFlight = false
		state.liveOrderID = ""

		return
	}

	if !live.Status.IsTerminal() {
		confirmed, err := w.engine.cancelVenueOrder(ctx, live)
		if err != nil && !confirmed {
			w.engine.deps.Log.Warn("cancel unresolved, requote stays queued",
				zap.String("venue_order_id", live.ID), zap.Error(err))

			return
		}
	}

	state.cancelInFlight = false
	state.liveOrderID = ""

	if state.order.Status.IsTerminal() {
		return
	}

	if state.pendingMid.IsSome() {
		mid := state.pendingMid.Unwrap()
		state.pendingMid = optional.None[decimal.Decimal]()
		w.place(ctx, state, mid)
	}
}

func (w *WideQuoter) place(ctx context.Context, state *quoteState, mid decimal.Decimal) {
	parent, err := w.engine.deps.ExecBook.Get(state.order.ID)
	if err != nil || parent.Status.IsTerminal() {
		return
	}

	remaining := parent.Remaining()
	if remaining.Sign() <= 0 {
		return
	}

	price := w.targetPrice(parent.Side, mid)

	order, err := w.engine.placeVenueOrder(ctx, parent, types.OrderTypeLimit,
		remaining, optional.Some(price), optional.Some(mid))
	if err != nil {
		w.engine.deps.Log.Warn("quote placement failed",
			zap.String("execution_order_id", parent.ID),
			zap.String("price", price.String()),
			zap.Error(err))

		return
	}

	state.liveOrderID = order.ID
}
