// Package venue defines the execution collaborator contract towards trading
// venues and ships a paper implementation for simulated trading. The real
// wire bindings live outside this module.
package venue

import (
	"context"

	"github.com/rxtech-lab/atlas-trading/internal/types"
)

// Gateway is the venue execution collaborator consumed by the execution
// engine. Every call is bounded by the context deadline. A deadline hit is
// surfaced as an error with code ErrCodeVenueTimeout and means the outcome is
// unknown: the caller must reconcile via OpenOrders before taking any
// compensating action. ErrCodeVenueUnavailable marks transient transport
// failures that are safe to retry; ErrCodeVenueRejected is a definitive no.
type Gateway interface {
	// PlaceOrder submits the order to the venue. A nil return is the venue
	// ack.
	PlaceOrder(ctx context.Context, order types.VenueOrder) error
	// CancelOrder requests cancellation of the order. A nil return is the
	// cancel ack.
	CancelOrder(ctx context.Context, orderID string) error
	// CancelAllOrders cancels every open order for the symbol.
	CancelAllOrders(ctx context.Context, symbol string) error
	// ModifyOrder replaces price/quantity of an open order in place, where
	// the venue supports it.
	ModifyOrder(ctx context.Context, order types.VenueOrder) error
	// OpenOrders returns the venue's view of open orders for the symbol.
	// Used to reconcile after an unknown-outcome call.
	OpenOrders(ctx context.Context, symbol string) ([]types.VenueOrder, error)
}
