package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/ledger"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AccountingServiceTestSuite struct {
	suite.Suite
	bus     *eventbus.Bus
	sub     *eventbus.Subscription
	book    *ledger.Ledger
	service *AccountingService
}

func TestAccountingServiceSuite(t *testing.T) {
	suite.Run(t, new(AccountingServiceTestSuite))
}

func (suite *AccountingServiceTestSuite) SetupTest() {
	suite.bus = eventbus.NewBus(logger.NewNopLogger(), 64)
	suite.sub = suite.bus.Subscribe(eventbus.Tags(
		types.TagBalanceUpdate, types.TagPositionUpdate, types.TagAccountUpdate))
	suite.book = ledger.NewLedger(logger.NewNopLogger())

	instruments := map[string]types.Instrument{
		"BTC-USDT": {
			Symbol:     "BTC-USDT",
			VenueID:    "paper",
			BaseAsset:  "BTC",
			QuoteAsset: "USDT",
			TickSize:   decimal.NewFromFloat(0.01),
			LotSize:    decimal.NewFromFloat(0.001),
		},
	}

	assets := map[string]types.Asset{
		"BTC":  {Symbol: "BTC", Type: types.AssetTypeCrypto, Precision: 8},
		"USDT": {Symbol: "USDT", Type: types.AssetTypeCrypto, Precision: 2},
	}

	suite.service = NewAccountingService(
		suite.bus, suite.book, instruments, assets,
		types.Venue{ID: "paper", Name: "paper"}, types.AccountTypeSpot, logger.NewNopLogger())
}

func (suite *AccountingServiceTestSuite) TearDownTest() {
	suite.bus.Close()
}

func (suite *AccountingServiceTestSuite) drain() []types.Event {
	var events []types.Event
	for {
		select {
		case event := <-suite.sub.Events():
			events = append(events, event)
		default:
			return events
		}
	}
}

func (suite *AccountingServiceTestSuite) buyFill(quantity, price float64) types.Fill {
	return types.Fill{
		ID:           uuid.New().String(),
		VenueOrderID: uuid.New().String(),
		Symbol:       "BTC-USDT",
		Side:         types.SideBuy,
		Quantity:     decimal.NewFromFloat(quantity),
		Price:        decimal.NewFromFloat(price),
		Timestamp:    time.Now().UTC(),
	}
}

func (suite *AccountingServiceTestSuite) TestFillSettlesIntoFactsAndSnapshot() {
	suite.Require().NoError(suite.service.settle(suite.buyFill(2, 100), true))

	events := suite.drain()
	suite.Require().Len(events, 4)

	var balances int
	var positions int
	var snapshots int

	for _, event := range events {
		switch e := event.(type) {
		case types.BalanceUpdateEvent:
			balances++
			suite.True(e.Update.Simulated)
		case types.PositionUpdateEvent:
			positions++
			suite.True(e.Update.Quantity.Equal(decimal.NewFromInt(2)))
		case types.AccountUpdateEvent:
			snapshots++
			suite.Equal("paper", e.Snapshot.VenueID)
		}
	}

	suite.Equal(2, balances, "base and quote leg")
	suite.Equal(1, positions)
	suite.Equal(1, snapshots)
}

func (suite *AccountingServiceTestSuite) TestLedgerReflectsFill() {
	suite.Require().NoError(suite.service.settle(suite.buyFill(2, 100), true))

	base := suite.book.BalanceAsOf(types.BalanceKey{
		VenueID: "paper", AccountType: types.AccountTypeSpot, Asset: "BTC",
	}, types.LatestIndex())
	suite.True(base.Quantity.Equal(decimal.NewFromInt(2)))

	quote := suite.book.BalanceAsOf(types.BalanceKey{
		VenueID: "paper", AccountType: types.AccountTypeSpot, Asset: "USDT",
	}, types.LatestIndex())
	suite.True(quote.Quantity.Equal(decimal.NewFromInt(-200)))
}

func (suite *AccountingServiceTestSuite) TestSnapshotMarksPositionsAtLastMid() {
	suite.Require().NoError(suite.service.handle(context.Background(), types.MarketDataEvent{
		Symbol: "BTC-USDT",
		Bid:    decimal.NewFromInt(109),
		Ask:    decimal.NewFromInt(111),
	}))

	suite.drain()
	suite.Require().NoError(suite.service.settle(suite.buyFill(1, 100), true))

	var snapshot types.AccountSnapshot
	for _, event := range suite.drain() {
		if e, ok := event.(types.AccountUpdateEvent); ok {
			snapshot = e.Snapshot
		}
	}

	// Quote balance -100 plus 1 BTC marked at mid 110.
	suite.True(snapshot.Equity.Equal(decimal.NewFromInt(10)),
		"equity %s", snapshot.Equity)
}

func (suite *AccountingServiceTestSuite) TestDuplicateFillSettlesOnce() {
	fill := suite.buyFill(2, 100)
	event := types.VenueOrderEvent{
		Kind:      types.TagVenueOrderUpdated,
		Fill:      &fill,
		Simulated: true,
	}

	suite.Require().NoError(suite.service.handle(context.Background(), event))
	first := suite.drain()
	suite.Require().NotEmpty(first)

	// The venue transport re-delivers; the ledger must not book it twice.
	suite.Require().NoError(suite.service.handle(context.Background(), event))
	suite.Empty(suite.drain())

	base := suite.book.BalanceAsOf(types.BalanceKey{
		VenueID: "paper", AccountType: types.AccountTypeSpot, Asset: "BTC",
	}, types.LatestIndex())
	suite.True(base.Quantity.Equal(decimal.NewFromInt(2)))

	position := suite.book.PositionAsOf("BTC-USDT", types.LatestIndex())
	suite.True(position.Quantity.Equal(decimal.NewFromInt(2)))
}

func (suite *AccountingServiceTestSuite) TestUnknownInstrumentIsIgnored() {
	fill := suite.buyFill(1, 100)
	fill.Symbol = "DOGE-USDT"

	suite.Require().NoError(suite.service.settle(fill, true))
	suite.Empty(suite.drain())
}
