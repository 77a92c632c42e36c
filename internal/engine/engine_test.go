package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite
	storePath string
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.storePath = filepath.Join(suite.T().TempDir(), "ledger.duckdb")
}

func (suite *EngineTestSuite) newConfig() Config {
	config := DefaultConfig()
	config.Instruments = []InstrumentConfig{{
		Symbol:     "BTC-USDT",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		TickSize:   0.01,
		LotSize:    0.001,
	}}
	config.Allocations = []AllocationConfig{{
		Symbol:        "BTC-USDT",
		BaseQuantity:  1,
		ExecutionType: types.ExecutionTypeMarket,
	}}
	config.StorePath = suite.storePath
	config.FlushIntervalMs = 20

	return config
}

func (suite *EngineTestSuite) TestSignalFlowsThroughToLedger() {
	engine, err := NewEngine(suite.newConfig(), logger.NewNopLogger())
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	quotes := mocks.NewDataGenerator(7).Generate(mocks.GeneratorConfig{
		Symbol:     "BTC-USDT",
		StartTime:  time.Now().UTC(),
		Interval:   time.Millisecond,
		Count:      10,
		InitialMid: 100,
		Volatility: 0.0005,
		SpreadPct:  0.0005,
	})

	for _, quote := range quotes {
		engine.Bus().Publish(quote)
	}

	engine.Bus().Publish(types.SignalEvent{
		Symbol:       "BTC-USDT",
		StrategyName: "trend",
		Direction:    decimal.NewFromInt(1),
		EventTime:    time.Now().UTC(),
	})

	// The market allocation fills immediately on the paper venue; wait for
	// the position fact to land in the ledger.
	deadline := time.After(5 * time.Second)
	for {
		position := engine.Ledger().PositionAsOf("BTC-USDT", types.LatestIndex())
		if position.Quantity.Equal(decimal.NewFromInt(1)) {
			break
		}

		select {
		case <-deadline:
			suite.FailNow("position never settled, at " + position.Quantity.String())
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Let the persistence flush interval pass before shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()
	suite.Require().NoError(<-done)
}

func (suite *EngineTestSuite) TestLedgerRehydratesAfterRestart() {
	suite.TestSignalFlowsThroughToLedger()

	config := suite.newConfig()
	engine, err := NewEngine(config, logger.NewNopLogger())
	suite.Require().NoError(err)
	defer func() { suite.NoError(engine.Close()) }()

	position := engine.Ledger().PositionAsOf("BTC-USDT", types.LatestIndex())
	suite.True(position.Quantity.Equal(decimal.NewFromInt(1)),
		"rehydrated position %s", position.Quantity)

	base := engine.Ledger().BalanceAsOf(types.BalanceKey{
		VenueID:     "paper",
		AccountType: types.AccountTypeSpot,
		Asset:       "BTC",
	}, types.LatestIndex())
	suite.True(base.Quantity.Equal(decimal.NewFromInt(1)),
		"rehydrated base balance %s", base.Quantity)
}
