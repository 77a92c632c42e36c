package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type OrderTestSuite struct {
	suite.Suite
}

func TestOrderSuite(t *testing.T) {
	suite.Run(t, new(OrderTestSuite))
}

func validVenueOrder() VenueOrder {
	return VenueOrder{
		ID:               uuid.New().String(),
		ExecutionOrderID: uuid.New().String(),
		Symbol:           "BTC-USD",
		Side:             SideBuy,
		OrderType:        OrderTypeLimit,
		Quantity:         decimal.NewFromFloat(0.5),
		Status:           VenueOrderStatusNew,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
		Price:            optional.Some(decimal.NewFromInt(50000)),
	}
}

func (suite *OrderTestSuite) TestVenueOrderValidate() {
	order := validVenueOrder()
	suite.NoError(order.Validate())
}

func (suite *OrderTestSuite) TestVenueOrderValidateRejectsZeroQuantity() {
	order := validVenueOrder()
	order.Quantity = decimal.Zero

	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestVenueOrderValidateRejectsLimitWithoutPrice() {
	order := validVenueOrder()
	order.Price = optional.None[decimal.Decimal]()

	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestLifecycleTransitions() {
	suite.True(VenueOrderStatusNew.CanTransitionTo(VenueOrderStatusSend))
	suite.True(VenueOrderStatusSend.CanTransitionTo(VenueOrderStatusAccepted))
	suite.True(VenueOrderStatusSend.CanTransitionTo(VenueOrderStatusRejected))
	suite.True(VenueOrderStatusAccepted.CanTransitionTo(VenueOrderStatusPartiallyFilled))
	suite.True(VenueOrderStatusAccepted.CanTransitionTo(VenueOrderStatusFilled))
	suite.True(VenueOrderStatusPartiallyFilled.CanTransitionTo(VenueOrderStatusPartiallyFilled))
	suite.True(VenueOrderStatusPartiallyFilled.CanTransitionTo(VenueOrderStatusFilled))
	suite.True(VenueOrderStatusPartiallyFilled.CanTransitionTo(VenueOrderStatusCanceled))
}

func (suite *OrderTestSuite) TestTerminalStatesAdmitNothing() {
	terminal := []VenueOrderStatus{
		VenueOrderStatusFilled,
		VenueOrderStatusRejected,
		VenueOrderStatusCanceled,
	}
	all := []VenueOrderStatus{
		VenueOrderStatusNew,
		VenueOrderStatusSend,
		VenueOrderStatusAccepted,
		VenueOrderStatusPartiallyFilled,
		VenueOrderStatusFilled,
		VenueOrderStatusRejected,
		VenueOrderStatusCanceled,
	}

	for _, from := range terminal {
		suite.True(from.IsTerminal())

		for _, to := range all {
			suite.False(from.CanTransitionTo(to), "terminal %s must not transition to %s", from, to)
		}
	}
}

func (suite *OrderTestSuite) TestIllegalTransitions() {
	suite.False(VenueOrderStatusNew.CanTransitionTo(VenueOrderStatusAccepted))
	suite.False(VenueOrderStatusNew.CanTransitionTo(VenueOrderStatusFilled))
	suite.False(VenueOrderStatusAccepted.CanTransitionTo(VenueOrderStatusRejected))
	suite.False(VenueOrderStatusAccepted.CanTransitionTo(VenueOrderStatusSend))
}

func (suite *OrderTestSuite) TestExecutionOrderValidate() {
	order := ExecutionOrder{
		ID:             uuid.New().String(),
		Symbol:         "BTC-USD",
		Side:           SideSell,
		ExecutionType:  ExecutionTypeWideQuoting,
		TargetQuantity: decimal.NewFromInt(2),
		Status:         ExecutionOrderStatusActive,
		CreatedAt:      time.Now(),
	}
	suite.NoError(order.Validate())

	order.ExecutionType = ExecutionTypeLimit
	suite.Error(order.Validate(), "limit execution requires a limit price")

	order.LimitPrice = optional.Some(decimal.NewFromInt(50000))
	suite.NoError(order.Validate())
}

func (suite *OrderTestSuite) TestRemaining() {
	order := validVenueOrder()
	order.FilledQuantity = decimal.NewFromFloat(0.2)

	suite.True(order.Remaining().Equal(decimal.NewFromFloat(0.3)))
}
