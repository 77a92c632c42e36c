package orderbook

import (
	"sync"

	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExecutionOrderBook tracks execution orders and the set of venue orders each
// one has spawned. Parent and child reference each other by id through lookup
// tables owned here, never by direct pointers.
type ExecutionOrderBook struct {
	mu            sync.RWMutex
	orders        map[string]*types.ExecutionOrder
	children      map[string][]string
	childToParent map[string]string
	log           *logger.Logger
}

// NewExecutionOrderBook creates an empty execution order book.
func NewExecutionOrderBook(log *logger.Logger) *ExecutionOrderBook {
	return &ExecutionOrderBook{
		orders:        make(map[string]*types.ExecutionOrder),
		children:      make(map[string][]string),
		childToParent: make(map[string]string),
		log:           log,
	}
}

// Add registers a new execution order in status Active.
func (b *ExecutionOrderBook) Add(order types.ExecutionOrder) error {
	if err := order.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[order.ID]; exists {
		return errors.Newf(errors.ErrCodeOrderAlreadyExists, "execution order %s already exists", order.ID)
	}

	order.Status = types.ExecutionOrderStatusActive
	b.orders[order.ID] = &order

	return nil
}

// AttachChild records that the venue order belongs to the execution order.
func (b *ExecutionOrderBook) AttachChild(executionOrderID, venueOrderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.orders[executionOrderID]; !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "no execution order with id %s", executionOrderID)
	}

	if parent, ok := b.childToParent[venueOrderID]; ok {
		if parent == executionOrderID {
			return nil
		}

		return errors.Newf(errors.ErrCodeUnknownChildOrder,
			"venue order %s already belongs to execution order %s", venueOrderID, parent)
	}

	b.children[executionOrderID] = append(b.children[executionOrderID], venueOrderID)
	b.childToParent[venueOrderID] = executionOrderID

	return nil
}

// ApplyChildFill increments the parent's filled quantity by the newly filled
// delta of one child fill. The delta, not the child's cumulative quantity, is
// what prevents double counting across repeated partial fills. The filled
// quantity is clamped at the target; an overshoot is logged as an anomaly.
// Returns the updated parent snapshot.
func (b *ExecutionOrderBook) ApplyChildFill(venueOrderID string, delta decimal.Decimal) (types.ExecutionOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parentID, ok := b.childToParent[venueOrderID]
	if !ok {
		return types.ExecutionOrder{},
			errors.Newf(errors.ErrCodeUnknownChildOrder, "venue order %s has no parent", venueOrderID)
	}

	order := b.orders[parentID]

	if order.Status.IsTerminal() {
		b.log.Warn("child fill on terminal execution order ignored",
			zap.String("execution_order_id", parentID),
			zap.String("venue_order_id", venueOrderID))

		return *order, nil
	}

	if remaining := order.Remaining(); delta.GreaterThan(remaining) {
		b.log.Warn("child fill overshoots target quantity, clamped",
			zap.String("execution_order_id", parentID),
			zap.String("delta", delta.String()),
			zap.String("remaining", remaining.String()))

		delta = remaining
	}

	order.FilledQuantity = order.FilledQuantity.Add(delta)

	if order.FilledQuantity.GreaterThanOrEqual(order.TargetQuantity) {
		order.Status = types.ExecutionOrderStatusFilled
	}

	return *order, nil
}

// Reject moves the execution order to its terminal Rejected status.
func (b *ExecutionOrderBook) Reject(executionOrderID string) (types.ExecutionOrder, error) {
	return b.terminate(executionOrderID, types.ExecutionOrderStatusRejected)
}

// Cancel moves the execution order to its terminal Canceled status.
func (b *ExecutionOrderBook) Cancel(executionOrderID string) (types.ExecutionOrder, error) {
	return b.terminate(executionOrderID, types.ExecutionOrderStatusCanceled)
}

func (b *ExecutionOrderBook) terminate(id string, status types.ExecutionOrderStatus) (types.ExecutionOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[id]
	if !ok {
		return types.ExecutionOrder{}, errors.Newf(errors.ErrCodeOrderNotFound, "no execution order with id %s", id)
	}

	if order.Status.IsTerminal() {
		return *order, errors.Wrap(errors.ErrCodeInvalidTransition, "execution order already terminal",
			errors.NewTransitionError(id, string(order.Status), string(status)))
	}

	order.Status = status

	return *order, nil
}

// Get returns a snapshot of the execution order with the given id.
func (b *ExecutionOrderBook) Get(id string) (types.ExecutionOrder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.orders[id]
	if !ok {
		return types.ExecutionOrder{}, errors.Newf(errors.ErrCodeOrderNotFound, "no execution order with id %s", id)
	}

	return *order, nil
}

// Children returns the venue order ids spawned by the execution order.
func (b *ExecutionOrderBook) Children(executionOrderID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.children[executionOrderID]
	out := make([]string, len(ids))
	copy(out, ids)

	return out
}

// Parent returns the execution order id owning the given venue order.
func (b *ExecutionOrderBook) Parent(venueOrderID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	parent, ok := b.childToParent[venueOrderID]

	return parent, ok
}

// Active returns snapshots of all non-terminal execution orders.
func (b *ExecutionOrderBook) Active() []types.ExecutionOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var active []types.ExecutionOrder

	for _, order := range b.orders {
		if !order.Status.IsTerminal() {
			active = append(active, *order)
		}
	}

	return active
}
