package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// AssetType classifies an asset for accounting purposes.
type AssetType string

const (
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeFiat   AssetType = "FIAT"
)

// AccountType distinguishes venue account buckets.
type AccountType string

const (
	AccountTypeSpot   AccountType = "SPOT"
	AccountTypeMargin AccountType = "MARGIN"
)

// Asset is an immutable reference entity describing a single asset. Assets are
// created once at bootstrap and shared read-only by every other component.
type Asset struct {
	Symbol    string    `yaml:"symbol" json:"symbol" validate:"required"`
	Type      AssetType `yaml:"type" json:"type" validate:"required,oneof=CRYPTO FIAT"`
	Precision int32     `yaml:"precision" json:"precision" validate:"gte=0"`
}

// Venue is an immutable reference entity describing a trading venue.
type Venue struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" json:"name" validate:"required"`
}

// Instrument is an immutable reference entity describing a tradable pair on a
// venue, including its quantization constraints.
type Instrument struct {
	Symbol     string          `yaml:"symbol" json:"symbol" validate:"required"`
	VenueID    string          `yaml:"venue_id" json:"venue_id" validate:"required"`
	BaseAsset  string          `yaml:"base_asset" json:"base_asset" validate:"required"`
	QuoteAsset string          `yaml:"quote_asset" json:"quote_asset" validate:"required"`
	TickSize   decimal.Decimal `yaml:"tick_size" json:"tick_size"`
	LotSize    decimal.Decimal `yaml:"lot_size" json:"lot_size"`
}

// Validate validates the Instrument struct.
func (i *Instrument) Validate() error {
	validate := validator.New()
	if err := validate.Struct(i); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInstrument, "invalid instrument", err)
	}

	if i.TickSize.Sign() <= 0 || i.LotSize.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidInstrument,
			"tick size and lot size must be positive for %s", i.Symbol)
	}

	return nil
}

// RoundToTick quantizes a price to the instrument's tick size, rounding down.
func (i *Instrument) RoundToTick(price decimal.Decimal) decimal.Decimal {
	if i.TickSize.Sign() <= 0 {
		return price
	}

	return price.Div(i.TickSize).Floor().Mul(i.TickSize)
}

// RoundToLot quantizes a quantity to the instrument's lot size, rounding down.
func (i *Instrument) RoundToLot(quantity decimal.Decimal) decimal.Decimal {
	if i.LotSize.Sign() <= 0 {
		return quantity
	}

	return quantity.Div(i.LotSize).Floor().Mul(i.LotSize)
}
