package venue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaperGateway simulates a venue in memory for paper trading and tests.
// Placed limit orders rest until OnMarketData sees the mid cross the limit
// price; market orders fill immediately at the last known mid. Acks and fills
// are reported through the OnAck / OnFill callbacks so the execution service
// consumes the paper venue exactly like a live one.
type PaperGateway struct {
	mu      sync.Mutex
	orders  map[string]*types.VenueOrder
	lastMid map[string]decimal.Decimal
	log     *logger.Logger

	// OnFill is invoked for every simulated fill. Set before first use.
	OnFill func(fill types.Fill)
}

// NewPaperGateway creates an empty paper venue.
func NewPaperGateway(log *logger.Logger) *PaperGateway {
	return &PaperGateway{
		orders:  make(map[string]*types.VenueOrder),
		lastMid: make(map[string]decimal.Decimal),
		log:     log,
	}
}

// PlaceOrder accepts the order. Market orders fill immediately at the last
// mid; limit orders rest until the mid crosses the limit price.
func (g *PaperGateway) PlaceOrder(ctx context.Context, order types.VenueOrder) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeVenueTimeout, "place order timed out", err)
	}

	g.mu.Lock()

	if order.OrderType == types.OrderTypeMarket {
		mid, ok := g.lastMid[order.Symbol]
		if !ok {
			g.mu.Unlock()
			return errors.Newf(errors.ErrCodeVenueRejected, "no market for %s", order.Symbol)
		}

		fill := g.fillFor(&order, order.Remaining(), mid)
		g.mu.Unlock()

		g.emit(fill)

		return nil
	}

	copied := order
	g.orders[order.ID] = &copied
	g.mu.Unlock()

	return nil
}

// CancelOrder removes a resting order.
func (g *PaperGateway) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeVenueTimeout, "cancel order timed out", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.orders[orderID]; !ok {
		return errors.Newf(errors.ErrCodeVenueRejected, "unknown or closed order %s", orderID)
	}

	delete(g.orders, orderID)

	return nil
}

// CancelAllOrders removes every resting order for the symbol.
func (g *PaperGateway) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeVenueTimeout, "cancel all timed out", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for id, order := range g.orders {
		if order.Symbol == symbol {
			delete(g.orders, id)
		}
	}

	return nil
}

// ModifyOrder is not supported: the paper venue mirrors venues without atomic
// replace, which is why the execution engine cancels and re-places.
func (g *PaperGateway) ModifyOrder(ctx context.Context, order types.VenueOrder) error {
	return errors.New(errors.ErrCodeVenueRejected, "paper venue does not support modify")
}

// OpenOrders returns resting orders for the symbol.
func (g *PaperGateway) OpenOrders(ctx context.Context, symbol string) ([]types.VenueOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeVenueTimeout, "open orders timed out", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var open []types.VenueOrder

	for _, order := range g.orders {
		if order.Symbol == symbol {
			open = append(open, *order)
		}
	}

	return open, nil
}

// OnMarketData advances the simulation: resting limit orders whose price is
// crossed by the new mid are filled at their limit price.
func (g *PaperGateway) OnMarketData(event types.MarketDataEvent) {
	mid := event.Mid()

	g.mu.Lock()

	g.lastMid[event.Symbol] = mid

	var fills []types.Fill

	for id, order := range g.orders {
		if order.Symbol != event.Symbol {
			continue
		}

		price, crossed := g.crossed(order, mid)
		if !crossed {
			continue
		}

		fills = append(fills, g.fillFor(order, order.Remaining(), price))
		delete(g.orders, id)
	}

	g.mu.Unlock()

	for _, fill := range fills {
		g.emit(fill)
	}
}

func (g *PaperGateway) crossed(order *types.VenueOrder, mid decimal.Decimal) (decimal.Decimal, bool) {
	if order.Price.IsNone() {
		return decimal.Zero, false
	}

	limit := order.Price.Unwrap()

	if order.Side == types.SideBuy && mid.LessThanOrEqual(limit) {
		return limit, true
	}

	if order.Side == types.SideSell && mid.GreaterThanOrEqual(limit) {
		return limit, true
	}

	return decimal.Zero, false
}

func (g *PaperGateway) fillFor(order *types.VenueOrder, quantity, price decimal.Decimal) types.Fill {
	return types.Fill{
		ID:           uuid.New().String(),
		VenueOrderID: order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Quantity:     quantity,
		Price:        price,
		Timestamp:    time.Now().UTC(),
	}
}

func (g *PaperGateway) emit(fill types.Fill) {
	if g.OnFill == nil {
		g.log.Warn("paper fill dropped, no fill callback set",
			zap.String("venue_order_id", fill.VenueOrderID))
		return
	}

	g.OnFill(fill)
}
