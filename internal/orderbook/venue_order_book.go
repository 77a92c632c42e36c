// Package orderbook tracks the lifecycle of orders in memory. The
// VenueOrderBook owns venue order state, the ExecutionOrderBook owns the
// higher-level intents that spawn venue orders. Each book is the single
// writer of its state; everything else reads snapshots.
package orderbook

import (
	"sync"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VenueOrderBook tracks every venue order by id and enforces the lifecycle
// state machine. Transitions not in the table are rejected with a
// TransitionError; fills on terminal orders and duplicate fill ids are
// idempotent no-ops logged as anomalies, because the venue transport may
// re-deliver.
type VenueOrderBook struct {
	mu           sync.RWMutex
	orders       map[string]*types.VenueOrder
	appliedFills map[string]map[string]struct{}
	log          *logger.Logger
}

// NewVenueOrderBook creates an empty venue order book.
func NewVenueOrderBook(log *logger.Logger) *VenueOrderBook {
	return &VenueOrderBook{
		orders:       make(map[string]*types.VenueOrder),
		appliedFills: make(map[string]map[string]struct{}),
		log:          log,
	}
}

// Add registers a new venue order. The order must be in status New and its id
// must be unused.
func (b *VenueOrderBook) Add(order types.VenueOrder) error {
	if err := order.Validate(); err != nil {
		return err
	}

	if order.Status != types.VenueOrderStatusNew {
		return errors.Newf(errors.ErrCodeInvalidOrder,
			"venue order %s must be added in status NEW, got %s", order.ID, order.Status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[order.ID]; exists {
		return errors.Newf(errors.ErrCodeOrderAlreadyExists, "venue order %s already exists", order.ID)
	}

	b.orders[order.ID] = &order
	b.appliedFills[order.ID] = make(map[string]struct{})

	return nil
}

// Transition moves an order to the target status, enforcing the lifecycle
// table. Returns the updated snapshot.
func (b *VenueOrderBook) Transition(id string, target types.VenueOrderStatus) (types.VenueOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[id]
	if !ok {
		return types.VenueOrder{}, errors.Newf(errors.ErrCodeOrderNotFound, "no venue order with id %s", id)
	}

	if !order.Status.CanTransitionTo(target) {
		return *order, errors.Wrap(errors.ErrCodeInvalidTransition, "venue order transition rejected",
			errors.NewTransitionError(id, string(order.Status), string(target)))
	}

	order.Status = target
	order.UpdatedAt = time.Now().UTC()

	return *order, nil
}

// ApplyFill applies a fill to the order and returns the updated snapshot plus
// the newly filled delta. A fill on a terminal order, or a fill id already
// applied, is a no-op returning a zero delta. A fill arriving while the order
// is still in Send counts as an implicit venue ack, since a fast venue can
// fill before the place call returns.
func (b *VenueOrderBook) ApplyFill(fill types.Fill) (types.VenueOrder, decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[fill.VenueOrderID]
	if !ok {
		return types.VenueOrder{}, decimal.Zero,
			errors.Newf(errors.ErrCodeOrderNotFound, "no venue order with id %s", fill.VenueOrderID)
	}

	if order.Status.IsTerminal() {
		b.log.Warn("fill on terminal order ignored",
			zap.String("order_id", order.ID),
			zap.String("fill_id", fill.ID),
			zap.String("status", string(order.Status)))

		return *order, decimal.Zero, nil
	}

	applied := b.appliedFills[order.ID]
	if _, seen := applied[fill.ID]; fill.ID != "" && seen {
		b.log.Warn("duplicate fill ignored",
			zap.String("order_id", order.ID),
			zap.String("fill_id", fill.ID))

		return *order, decimal.Zero, nil
	}

	if order.Status == types.VenueOrderStatusSend {
		// A fast venue can fill before its ack returns; the fill implies the
		// ack, so the order passes through Accepted instead of losing the fill.
		order.Status = types.VenueOrderStatusAccepted
		b.log.Info("fill before venue ack, order implicitly accepted",
			zap.String("order_id", order.ID),
			zap.String("fill_id", fill.ID))
	}

	target := types.VenueOrderStatusPartiallyFilled
	if order.FilledQuantity.Add(fill.Quantity).GreaterThanOrEqual(order.Quantity) {
		target = types.VenueOrderStatusFilled
	}

	if !order.Status.CanTransitionTo(target) {
		return *order, decimal.Zero,
			errors.Wrap(errors.ErrCodeInvalidTransition, "fill rejected",
				errors.NewTransitionError(order.ID, string(order.Status), string(target)))
	}

	delta := fill.Quantity
	if remaining := order.Remaining(); delta.GreaterThan(remaining) {
		b.log.Warn("fill exceeds remaining quantity, clamped",
			zap.String("order_id", order.ID),
			zap.String("fill", fill.Quantity.String()),
			zap.String("remaining", remaining.String()))

		delta = remaining
	}

	order.FilledQuantity = order.FilledQuantity.Add(delta)
	order.Status = target
	order.UpdatedAt = time.Now().UTC()

	if fill.ID != "" {
		applied[fill.ID] = struct{}{}
	}

	return *order, delta, nil
}

// Get returns a snapshot of the order with the given id.
func (b *VenueOrderBook) Get(id string) (types.VenueOrder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.orders[id]
	if !ok {
		return types.VenueOrder{}, errors.Newf(errors.ErrCodeOrderNotFound, "no venue order with id %s", id)
	}

	return *order, nil
}

// Open returns snapshots of all non-terminal orders.
func (b *VenueOrderBook) Open() []types.VenueOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var open []types.VenueOrder

	for _, order := range b.orders {
		if !order.Status.IsTerminal() {
			open = append(open, *order)
		}
	}

	return open
}
