package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

type VenueOrderStatus string

type ExecutionType string

type ExecutionOrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Venue order lifecycle states. New -> Send -> Accepted -> (PartiallyFilled ->
// ... ->) Filled | Rejected | Canceled. Filled, Rejected and Canceled are
// terminal.
const (
	VenueOrderStatusNew             VenueOrderStatus = "NEW"
	VenueOrderStatusSend            VenueOrderStatus = "SEND"
	VenueOrderStatusAccepted        VenueOrderStatus = "ACCEPTED"
	VenueOrderStatusPartiallyFilled VenueOrderStatus = "PARTIALLY_FILLED"
	VenueOrderStatusFilled          VenueOrderStatus = "FILLED"
	VenueOrderStatusRejected        VenueOrderStatus = "REJECTED"
	VenueOrderStatusCanceled        VenueOrderStatus = "CANCELED"
)

const (
	ExecutionTypeMarket      ExecutionType = "MARKET"
	ExecutionTypeLimit       ExecutionType = "LIMIT"
	ExecutionTypeWideQuoting ExecutionType = "WIDE_QUOTING"
)

const (
	ExecutionOrderStatusActive   ExecutionOrderStatus = "ACTIVE"
	ExecutionOrderStatusFilled   ExecutionOrderStatus = "FILLED"
	ExecutionOrderStatusRejected ExecutionOrderStatus = "REJECTED"
	ExecutionOrderStatusCanceled ExecutionOrderStatus = "CANCELED"
)

// venueOrderTransitions is the only legal set of lifecycle moves. Anything not
// listed here is rejected by the order book.
var venueOrderTransitions = map[VenueOrderStatus][]VenueOrderStatus{
	VenueOrderStatusNew:             {VenueOrderStatusSend, VenueOrderStatusCanceled},
	VenueOrderStatusSend:            {VenueOrderStatusAccepted, VenueOrderStatusRejected, VenueOrderStatusCanceled},
	VenueOrderStatusAccepted:        {VenueOrderStatusPartiallyFilled, VenueOrderStatusFilled, VenueOrderStatusCanceled},
	VenueOrderStatusPartiallyFilled: {VenueOrderStatusPartiallyFilled, VenueOrderStatusFilled, VenueOrderStatusCanceled},
}

// IsTerminal reports whether the status admits no further transitions.
func (s VenueOrderStatus) IsTerminal() bool {
	switch s {
	case VenueOrderStatusFilled, VenueOrderStatusRejected, VenueOrderStatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to target is a legal lifecycle
// transition.
func (s VenueOrderStatus) CanTransitionTo(target VenueOrderStatus) bool {
	for _, next := range venueOrderTransitions[s] {
		if next == target {
			return true
		}
	}

	return false
}

// IsTerminal reports whether the execution order status admits no further
// transitions.
func (s ExecutionOrderStatus) IsTerminal() bool {
	switch s {
	case ExecutionOrderStatusFilled, ExecutionOrderStatusRejected, ExecutionOrderStatusCanceled:
		return true
	default:
		return false
	}
}

// VenueOrder is one order as known to a specific venue. It is owned exclusively
// by the VenueOrderBook that created it; every other component sees snapshots.
type VenueOrder struct {
	ID               string           `yaml:"id" json:"id" validate:"required,uuid"`
	ExecutionOrderID string           `yaml:"execution_order_id" json:"execution_order_id" validate:"required,uuid"`
	Symbol           string           `yaml:"symbol" json:"symbol" validate:"required"`
	Side             Side             `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	OrderType        OrderType        `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Quantity         decimal.Decimal  `yaml:"quantity" json:"quantity"`
	FilledQuantity   decimal.Decimal  `yaml:"filled_quantity" json:"filled_quantity"`
	Status           VenueOrderStatus `yaml:"status" json:"status"`
	CreatedAt        time.Time        `yaml:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `yaml:"updated_at" json:"updated_at"`
	// Price is empty for market orders.
	Price optional.Option[decimal.Decimal] `yaml:"price" json:"price"`
	// ReferencePrice is the mid price observed when the order was quoted. The
	// wide quoting algorithm compares the live mid against it to decide when
	// to requote.
	ReferencePrice optional.Option[decimal.Decimal] `yaml:"reference_price" json:"reference_price"`
}

// Remaining returns the unfilled quantity of the order.
func (o *VenueOrder) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Validate validates the VenueOrder struct.
func (o *VenueOrder) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid venue order", err)
	}

	if o.Quantity.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "venue order %s quantity must be positive", o.ID)
	}

	if o.OrderType == OrderTypeLimit && o.Price.IsNone() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "limit order %s requires a price", o.ID)
	}

	return nil
}

// ExecutionOrder is a higher-level trading intent that may spawn any number of
// venue orders over its lifetime. Fills of all child venue orders aggregate
// into FilledQuantity.
type ExecutionOrder struct {
	ID             string               `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol         string               `yaml:"symbol" json:"symbol" validate:"required"`
	Side           Side                 `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	ExecutionType  ExecutionType        `yaml:"execution_type" json:"execution_type" validate:"required,oneof=MARKET LIMIT WIDE_QUOTING"`
	TargetQuantity decimal.Decimal      `yaml:"target_quantity" json:"target_quantity"`
	FilledQuantity decimal.Decimal      `yaml:"filled_quantity" json:"filled_quantity"`
	Status         ExecutionOrderStatus `yaml:"status" json:"status"`
	StrategyName   string               `yaml:"strategy_name" json:"strategy_name"`
	CreatedAt      time.Time            `yaml:"created_at" json:"created_at"`
	// LimitPrice applies to LIMIT execution only.
	LimitPrice optional.Option[decimal.Decimal] `yaml:"limit_price" json:"limit_price"`
}

// Remaining returns the quantity still to be executed.
func (o *ExecutionOrder) Remaining() decimal.Decimal {
	return o.TargetQuantity.Sub(o.FilledQuantity)
}

// Validate validates the ExecutionOrder struct.
func (o *ExecutionOrder) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid execution order", err)
	}

	if o.TargetQuantity.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "execution order %s target quantity must be positive", o.ID)
	}

	if o.ExecutionType == ExecutionTypeLimit && o.LimitPrice.IsNone() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "limit execution order %s requires a limit price", o.ID)
	}

	return nil
}

// Fill is one confirmed (partial or full) execution of a venue order. ID is
// the venue's execution id; the order book uses it to detect duplicate
// delivery from the venue transport, which is expected and must be idempotent.
type Fill struct {
	ID           string          `yaml:"id" json:"id"`
	VenueOrderID string          `yaml:"venue_order_id" json:"venue_order_id"`
	Symbol       string          `yaml:"symbol" json:"symbol"`
	Side         Side            `yaml:"side" json:"side"`
	Quantity     decimal.Decimal `yaml:"quantity" json:"quantity"`
	Price        decimal.Decimal `yaml:"price" json:"price"`
	Timestamp    time.Time       `yaml:"timestamp" json:"timestamp"`
}
