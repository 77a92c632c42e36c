package execution

import (
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// The wide quoting tests run on the engine suite so they exercise the full
// place and cancel paths, not the algorithm in isolation.

func (suite *EngineTestSuite) TestWideQuotePlacesOnFirstTick() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))

	// No quote until market data arrives.
	suite.Empty(suite.liveOrders(order.ID))

	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)
	suite.Equal(types.OrderTypeLimit, live[0].OrderType)
	// Buy rests below the mid of 100 by the configured spread.
	suite.True(live[0].Price.Unwrap().Equal(decimal.NewFromFloat(99.9)),
		"quote price %s", live[0].Price.Unwrap())
	suite.True(live[0].ReferencePrice.Unwrap().Equal(decimal.NewFromInt(100)))
	suite.True(live[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func (suite *EngineTestSuite) TestWideQuoteSellRestsAboveMid() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 4)
	order.Side = types.SideSell
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))

	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)
	suite.True(live[0].Price.Unwrap().Equal(decimal.NewFromFloat(100.1)))
}

func (suite *EngineTestSuite) TestWideQuoteHoldsWithinThreshold() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	// A 0.001 move is within the 0.002 requote threshold.
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.0, 100.2)))

	suite.Equal(1, suite.gateway.placeCalls)
	suite.Equal(0, suite.gateway.cancelCalls)
	suite.Len(suite.liveOrders(order.ID), 1)
}

func (suite *EngineTestSuite) TestWideQuoteRequotesOnLargeMove() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	first := suite.liveOrders(order.ID)
	suite.Require().Len(first, 1)

	// Mid moves from 100 to 100.3, a 0.003 move beyond the 0.002 threshold:
	// the engine must cancel the resting quote and place exactly one
	// replacement.
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.2, 100.4)))

	suite.Equal(2, suite.gateway.placeCalls)
	suite.Equal(1, suite.gateway.cancelCalls)

	old, err := suite.venueBook.Get(first[0].ID)
	suite.Require().NoError(err)
	suite.Equal(types.VenueOrderStatusCanceled, old.Status)

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)
	suite.NotEqual(first[0].ID, live[0].ID)
	suite.True(live[0].Price.Unwrap().Equal(decimal.NewFromFloat(100.1997)),
		"replacement price %s", live[0].Price.Unwrap())
	suite.True(live[0].ReferencePrice.Unwrap().Equal(decimal.NewFromFloat(100.3)))
}

func (suite *EngineTestSuite) TestWideQuoteNeverHasTwoLiveOrders() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))

	mids := [][2]float64{
		{99.9, 100.1},
		{100.3, 100.5},
		{99.5, 99.7},
		{100.9, 101.1},
	}
	for _, quote := range mids {
		suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(quote[0], quote[1])))
		suite.Require().Len(suite.liveOrders(order.ID), 1)
	}
}

func (suite *EngineTestSuite) TestWideQuoteReplacementUsesRemainingQuantity() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)
	suite.Require().NoError(suite.engine.OnFill(suite.ctx, suite.fillFor(live[0], 4, 99.9)))

	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.2, 100.4)))

	replacement := suite.liveOrders(order.ID)
	suite.Require().Len(replacement, 1)
	suite.True(replacement[0].Quantity.Equal(decimal.NewFromInt(6)),
		"replacement quantity %s", replacement[0].Quantity)
}

func (suite *EngineTestSuite) TestWideQuoteCompletionStopsQuoting() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 5)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)
	suite.Require().NoError(suite.engine.OnFill(suite.ctx, suite.fillFor(live[0], 5, 99.9)))

	parent, err := suite.execBook.Get(order.ID)
	suite.Require().NoError(err)
	suite.Equal(types.ExecutionOrderStatusFilled, parent.Status)

	placesBefore := suite.gateway.placeCalls
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(101.0, 101.2)))
	suite.Equal(placesBefore, suite.gateway.placeCalls)
}

func (suite *EngineTestSuite) TestWideQuoteCancelTimeoutIssuesOneFollowUp() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	// The first cancel times out without reaching the venue. The engine must
	// check venue state, find the quote still open, and issue exactly one
	// follow-up cancel before placing the replacement.
	suite.gateway.cancelResults = []error{
		errors.New(errors.ErrCodeVenueTimeout, "deadline exceeded"),
	}

	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.2, 100.4)))

	suite.Equal(2, suite.gateway.cancelCalls)
	suite.Equal(2, suite.gateway.placeCalls)

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)

	// Only the replacement rests at the venue; the stale quote is gone.
	suite.Len(suite.gateway.open, 1)
	suite.Contains(suite.gateway.open, live[0].ID)
}

func (suite *EngineTestSuite) TestWideQuoteCancelTimeoutAlreadyLandedSkipsFollowUp() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	// The cancel times out but actually landed: reconciliation finds the
	// order gone and must not send a second cancel.
	suite.gateway.landOnTimeout = true
	suite.gateway.cancelResults = []error{
		errors.New(errors.ErrCodeVenueTimeout, "deadline exceeded"),
	}

	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.2, 100.4)))

	suite.Equal(1, suite.gateway.cancelCalls)
	suite.Len(suite.liveOrders(order.ID), 1)
}

func (suite *EngineTestSuite) TestWideQuoteUnresolvedCancelQueuesRequote() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	first := suite.liveOrders(order.ID)
	suite.Require().Len(first, 1)

	// The cancel fails outright; the requote stays queued and no replacement
	// may be placed while the old quote could still be live.
	suite.gateway.cancelResults = []error{
		errors.New(errors.ErrCodeVenueUnavailable, "connection reset"),
	}

	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.2, 100.4)))

	suite.Equal(1, suite.gateway.placeCalls)
	suite.Require().Len(suite.liveOrders(order.ID), 1)
	suite.Equal(first[0].ID, suite.liveOrders(order.ID)[0].ID)

	// The next tick resolves the cancel and places the queued replacement at
	// the newest mid.
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(100.4, 100.6)))

	live := suite.liveOrders(order.ID)
	suite.Require().Len(live, 1)
	suite.NotEqual(first[0].ID, live[0].ID)
	suite.True(live[0].ReferencePrice.Unwrap().Equal(decimal.NewFromFloat(100.5)))
}

func (suite *EngineTestSuite) TestWideQuoteCancelExecutionRemovesQuote() {
	order := suite.newExecutionOrder(types.ExecutionTypeWideQuoting, 10)
	suite.Require().NoError(suite.engine.Submit(suite.ctx, order))
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(99.9, 100.1)))

	suite.Require().NoError(suite.engine.CancelExecution(suite.ctx, order.ID))

	suite.Empty(suite.liveOrders(order.ID))
	suite.Empty(suite.gateway.open)

	// Quoting must not resume after the execution order is canceled.
	placesBefore := suite.gateway.placeCalls
	suite.Require().NoError(suite.engine.OnMarketData(suite.ctx, suite.tick(101.0, 101.2)))
	suite.Equal(placesBefore, suite.gateway.placeCalls)
}
