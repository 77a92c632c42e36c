package engine

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/atlas-trading/internal/execution"
	"github.com/rxtech-lab/atlas-trading/internal/services"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InstrumentConfig describes one tradable pair. Numeric fields are plain
// floats in YAML and converted to decimals once at load.
type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol" validate:"required"`
	BaseAsset  string  `yaml:"base_asset" validate:"required"`
	QuoteAsset string  `yaml:"quote_asset" validate:"required"`
	TickSize   float64 `yaml:"tick_size" validate:"gt=0"`
	LotSize    float64 `yaml:"lot_size" validate:"gt=0"`
}

// AssetConfig declares one asset referenced by the instruments. Assets left
// undeclared default to 8-decimal crypto assets.
type AssetConfig struct {
	Symbol    string          `yaml:"symbol" validate:"required"`
	Type      types.AssetType `yaml:"type" validate:"required,oneof=CRYPTO FIAT"`
	Precision int32           `yaml:"precision" validate:"gte=0"`
}

// LimitsConfig bounds order flow towards the venue. Zero disables the
// respective check.
type LimitsConfig struct {
	MaxOrdersPerMinute   int     `yaml:"max_orders_per_minute" validate:"gte=0"`
	MinOrderSizeNotional float64 `yaml:"min_order_size_notional" validate:"gte=0"`
	MaxOrderSizeNotional float64 `yaml:"max_order_size_notional" validate:"gte=0"`
}

// WideQuoteConfig parameterizes the wide quoting algorithm.
type WideQuoteConfig struct {
	SpreadFromMid       float64 `yaml:"spread_from_mid" validate:"gt=0"`
	RequotePriceMovePct float64 `yaml:"requote_price_move_pct" validate:"gt=0"`
}

// RetryConfig bounds venue call retries.
type RetryConfig struct {
	MaxAttempts       uint64 `yaml:"max_attempts" validate:"gte=1"`
	InitialIntervalMs int    `yaml:"initial_interval_ms" validate:"gt=0"`
	MaxIntervalMs     int    `yaml:"max_interval_ms" validate:"gt=0"`
}

// AllocationConfig sizes signals for one instrument.
type AllocationConfig struct {
	Symbol        string              `yaml:"symbol" validate:"required"`
	BaseQuantity  float64             `yaml:"base_quantity" validate:"gt=0"`
	ExecutionType types.ExecutionType `yaml:"execution_type" validate:"required,oneof=MARKET LIMIT WIDE_QUOTING"`
}

// Config is the engine's startup configuration. It is validated once and
// immutable afterwards; there is no runtime reconfiguration path.
type Config struct {
	VenueID     string             `yaml:"venue_id" validate:"required"`
	VenueName   string             `yaml:"venue_name"`
	AccountType types.AccountType  `yaml:"account_type" validate:"required,oneof=SPOT MARGIN"`
	Simulated   bool               `yaml:"simulated"`
	Assets      []AssetConfig      `yaml:"assets" validate:"dive"`
	Instruments []InstrumentConfig `yaml:"instruments" validate:"required,min=1"`

	Limits      LimitsConfig       `yaml:"limits"`
	WideQuote   WideQuoteConfig    `yaml:"wide_quote"`
	Retry       RetryConfig        `yaml:"retry"`
	Allocations []AllocationConfig `yaml:"allocations"`

	// MaxExposureNotional halts a symbol once its marked exposure exceeds
	// this value. Zero disables the risk check.
	MaxExposureNotional float64 `yaml:"max_exposure_notional" validate:"gte=0"`

	// StorePath is the duckdb file for durable ledger facts. Empty disables
	// persistence and rehydration.
	StorePath       string `yaml:"store_path"`
	FlushIntervalMs int    `yaml:"flush_interval_ms" validate:"gt=0"`
	BusBufferSize   int    `yaml:"bus_buffer_size" validate:"gt=0"`
}

// DefaultConfig returns the baseline configuration for a simulated venue.
func DefaultConfig() Config {
	return Config{
		VenueID:     "paper",
		AccountType: types.AccountTypeSpot,
		Simulated:   true,
		Limits: LimitsConfig{
			MaxOrdersPerMinute: 120,
		},
		WideQuote: WideQuoteConfig{
			SpreadFromMid:       0.001,
			RequotePriceMovePct: 0.002,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialIntervalMs: 100,
			MaxIntervalMs:     2000,
		},
		FlushIntervalMs: 5000,
		BusBufferSize:   1024,
	}
}

// ParseConfig unmarshals a YAML document over the defaults and validates the
// result.
func ParseConfig(raw []byte) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
			"failed to read config %s", path)
	}

	return ParseConfig(raw)
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	assets := make(map[string]struct{}, len(c.Assets))
	for _, asset := range c.Assets {
		if _, ok := assets[asset.Symbol]; ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration,
				"duplicate asset %s", asset.Symbol)
		}

		assets[asset.Symbol] = struct{}{}
	}

	symbols := make(map[string]struct{}, len(c.Instruments))
	for _, instrument := range c.Instruments {
		if _, ok := symbols[instrument.Symbol]; ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration,
				"duplicate instrument %s", instrument.Symbol)
		}

		symbols[instrument.Symbol] = struct{}{}
	}

	for _, alloc := range c.Allocations {
		if _, ok := symbols[alloc.Symbol]; !ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration,
				"allocation references unknown instrument %s", alloc.Symbol)
		}
	}

	return nil
}

// Venue returns the configured venue as a domain entity. The name defaults to
// the id.
func (c *Config) Venue() types.Venue {
	name := c.VenueName
	if name == "" {
		name = c.VenueID
	}

	return types.Venue{ID: c.VenueID, Name: name}
}

// AssetMap returns the declared assets plus defaults for every instrument leg
// left undeclared, keyed by symbol.
func (c *Config) AssetMap() map[string]types.Asset {
	assets := make(map[string]types.Asset, len(c.Assets))

	for _, cfg := range c.Assets {
		assets[cfg.Symbol] = types.Asset{
			Symbol:    cfg.Symbol,
			Type:      cfg.Type,
			Precision: cfg.Precision,
		}
	}

	for _, instrument := range c.Instruments {
		for _, symbol := range []string{instrument.BaseAsset, instrument.QuoteAsset} {
			if _, ok := assets[symbol]; !ok {
				assets[symbol] = types.Asset{
					Symbol:    symbol,
					Type:      types.AssetTypeCrypto,
					Precision: 8,
				}
			}
		}
	}

	return assets
}

// InstrumentMap returns the configured instruments as domain entities keyed
// by symbol.
func (c *Config) InstrumentMap() map[string]types.Instrument {
	instruments := make(map[string]types.Instrument, len(c.Instruments))

	for _, cfg := range c.Instruments {
		instruments[cfg.Symbol] = types.Instrument{
			Symbol:     cfg.Symbol,
			VenueID:    c.VenueID,
			BaseAsset:  cfg.BaseAsset,
			QuoteAsset: cfg.QuoteAsset,
			TickSize:   decimal.NewFromFloat(cfg.TickSize),
			LotSize:    decimal.NewFromFloat(cfg.LotSize),
		}
	}

	return instruments
}

// WideQuoteParams converts the quote config to engine parameters.
func (c *Config) WideQuoteParams() execution.WideQuoteParams {
	return execution.WideQuoteParams{
		SpreadFromMid:       decimal.NewFromFloat(c.WideQuote.SpreadFromMid),
		RequotePriceMovePct: decimal.NewFromFloat(c.WideQuote.RequotePriceMovePct),
	}
}

// RetryPolicy converts the retry config to engine parameters.
func (c *Config) RetryPolicy() execution.RetryPolicy {
	return execution.RetryPolicy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: time.Duration(c.Retry.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(c.Retry.MaxIntervalMs) * time.Millisecond,
	}
}

// AllocationRules converts the allocation config to service rules.
func (c *Config) AllocationRules() map[string]services.AllocationRule {
	instruments := c.InstrumentMap()
	rules := make(map[string]services.AllocationRule, len(c.Allocations))

	for _, alloc := range c.Allocations {
		rules[alloc.Symbol] = services.AllocationRule{
			Instrument:    instruments[alloc.Symbol],
			BaseQuantity:  decimal.NewFromFloat(alloc.BaseQuantity),
			ExecutionType: alloc.ExecutionType,
		}
	}

	return rules
}
