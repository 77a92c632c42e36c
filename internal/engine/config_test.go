package engine

import (
	"testing"

	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

const validConfigYAML = `
venue_id: paper
venue_name: Paper Venue
account_type: SPOT
simulated: true
assets:
  - symbol: USDT
    type: FIAT
    precision: 2
instruments:
  - symbol: BTC-USDT
    base_asset: BTC
    quote_asset: USDT
    tick_size: 0.01
    lot_size: 0.001
limits:
  max_orders_per_minute: 60
  min_order_size_notional: 10
  max_order_size_notional: 100000
wide_quote:
  spread_from_mid: 0.001
  requote_price_move_pct: 0.002
allocations:
  - symbol: BTC-USDT
    base_quantity: 0.5
    execution_type: WIDE_QUOTING
max_exposure_notional: 500000
flush_interval_ms: 1000
bus_buffer_size: 256
`

func (suite *ConfigTestSuite) TestDefaultConfig() {
	config := DefaultConfig()

	suite.Equal("paper", config.VenueID)
	suite.Equal(types.AccountTypeSpot, config.AccountType)
	suite.True(config.Simulated)
	suite.Equal(120, config.Limits.MaxOrdersPerMinute)
	suite.Equal(0.001, config.WideQuote.SpreadFromMid)
	suite.Equal(0.002, config.WideQuote.RequotePriceMovePct)
	suite.Equal(uint64(3), config.Retry.MaxAttempts)
	suite.Equal(5000, config.FlushIntervalMs)
	suite.Equal(1024, config.BusBufferSize)
}

func (suite *ConfigTestSuite) TestParseValidConfig() {
	config, err := ParseConfig([]byte(validConfigYAML))
	suite.Require().NoError(err)

	suite.Equal("paper", config.VenueID)
	suite.Len(config.Instruments, 1)
	suite.Equal(60, config.Limits.MaxOrdersPerMinute)
	suite.Len(config.Allocations, 1)
	suite.Equal(types.ExecutionTypeWideQuoting, config.Allocations[0].ExecutionType)

	// Unset fields keep their defaults.
	suite.Equal(uint64(3), config.Retry.MaxAttempts)
}

func (suite *ConfigTestSuite) TestParseRejectsMissingInstruments() {
	_, err := ParseConfig([]byte("venue_id: paper\naccount_type: SPOT\n"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseRejectsUnknownAllocationSymbol() {
	raw := `
venue_id: paper
account_type: SPOT
instruments:
  - symbol: BTC-USDT
    base_asset: BTC
    quote_asset: USDT
    tick_size: 0.01
    lot_size: 0.001
allocations:
  - symbol: ETH-USDT
    base_quantity: 1
    execution_type: MARKET
`
	_, err := ParseConfig([]byte(raw))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestParseRejectsMalformedYAML() {
	_, err := ParseConfig([]byte("venue_id: [unclosed"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestInstrumentMapCarriesVenue() {
	config, err := ParseConfig([]byte(validConfigYAML))
	suite.Require().NoError(err)

	instruments := config.InstrumentMap()
	suite.Require().Contains(instruments, "BTC-USDT")
	suite.Equal("paper", instruments["BTC-USDT"].VenueID)
	suite.True(instruments["BTC-USDT"].TickSize.IsPositive())
}

func (suite *ConfigTestSuite) TestVenueDefaultsNameToID() {
	config := DefaultConfig()
	suite.Equal(types.Venue{ID: "paper", Name: "paper"}, config.Venue())

	config.VenueName = "Paper Venue"
	suite.Equal("Paper Venue", config.Venue().Name)
}

func (suite *ConfigTestSuite) TestAssetMapDefaultsUndeclaredLegs() {
	config, err := ParseConfig([]byte(validConfigYAML))
	suite.Require().NoError(err)

	assets := config.AssetMap()
	suite.Require().Contains(assets, "USDT")
	suite.Equal(types.AssetTypeFiat, assets["USDT"].Type)
	suite.Equal(int32(2), assets["USDT"].Precision)

	// BTC is only referenced by the instrument; it gets the crypto default.
	suite.Require().Contains(assets, "BTC")
	suite.Equal(types.AssetTypeCrypto, assets["BTC"].Type)
	suite.Equal(int32(8), assets["BTC"].Precision)
}

func (suite *ConfigTestSuite) TestParseRejectsDuplicateAsset() {
	raw := `
venue_id: paper
account_type: SPOT
assets:
  - symbol: USDT
    type: FIAT
    precision: 2
  - symbol: USDT
    type: CRYPTO
    precision: 8
instruments:
  - symbol: BTC-USDT
    base_asset: BTC
    quote_asset: USDT
    tick_size: 0.01
    lot_size: 0.001
`
	_, err := ParseConfig([]byte(raw))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestAllocationRulesResolveInstruments() {
	config, err := ParseConfig([]byte(validConfigYAML))
	suite.Require().NoError(err)

	rules := config.AllocationRules()
	suite.Require().Contains(rules, "BTC-USDT")
	suite.Equal("BTC-USDT", rules["BTC-USDT"].Instrument.Symbol)
	suite.True(rules["BTC-USDT"].BaseQuantity.Equal(decimal.NewFromFloat(0.5)))
}
