package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceKey identifies one balance history in the ledger.
type BalanceKey struct {
	VenueID     string      `yaml:"venue_id" json:"venue_id"`
	AccountType AccountType `yaml:"account_type" json:"account_type"`
	Asset       string      `yaml:"asset" json:"asset"`
}

// BalanceUpdate is an immutable fact recording one delta to an account's asset
// balance. Quantity is the running balance after applying QuantityChange, so a
// history is self-checking: the fold of all deltas up to an index must equal
// the Quantity of the last fact at or before it.
type BalanceUpdate struct {
	ID             string          `yaml:"id" json:"id"`
	Index          CompositeIndex  `yaml:"index" json:"index"`
	EventTime      time.Time       `yaml:"event_time" json:"event_time"`
	VenueID        string          `yaml:"venue_id" json:"venue_id"`
	AccountType    AccountType     `yaml:"account_type" json:"account_type"`
	Asset          string          `yaml:"asset" json:"asset"`
	QuantityChange decimal.Decimal `yaml:"quantity_change" json:"quantity_change"`
	Quantity       decimal.Decimal `yaml:"quantity" json:"quantity"`
	// Simulated marks facts produced by paper trading rather than a live venue.
	Simulated bool `yaml:"simulated" json:"simulated"`
}

// Key returns the balance history this fact belongs to.
func (b *BalanceUpdate) Key() BalanceKey {
	return BalanceKey{
		VenueID:     b.VenueID,
		AccountType: b.AccountType,
		Asset:       b.Asset,
	}
}

// PositionUpdate is an immutable fact recording one delta to an instrument
// exposure. QuantityChange is signed (buys positive, sells negative).
type PositionUpdate struct {
	ID               string          `yaml:"id" json:"id"`
	Index            CompositeIndex  `yaml:"index" json:"index"`
	EventTime        time.Time       `yaml:"event_time" json:"event_time"`
	Symbol           string          `yaml:"symbol" json:"symbol"`
	QuantityChange   decimal.Decimal `yaml:"quantity_change" json:"quantity_change"`
	Quantity         decimal.Decimal `yaml:"quantity" json:"quantity"`
	AvgEntryPrice    decimal.Decimal `yaml:"avg_entry_price" json:"avg_entry_price"`
	RealizedPnLDelta decimal.Decimal `yaml:"realized_pnl_delta" json:"realized_pnl_delta"`
	Simulated        bool            `yaml:"simulated" json:"simulated"`
}

// Balance is a point-in-time snapshot answered by the ledger.
type Balance struct {
	Key      BalanceKey      `yaml:"key" json:"key"`
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	AsOf     CompositeIndex  `yaml:"as_of" json:"as_of"`
}

// Position is a point-in-time exposure snapshot answered by the ledger.
type Position struct {
	Symbol        string          `yaml:"symbol" json:"symbol"`
	Quantity      decimal.Decimal `yaml:"quantity" json:"quantity"`
	AvgEntryPrice decimal.Decimal `yaml:"avg_entry_price" json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `yaml:"realized_pnl" json:"realized_pnl"`
	AsOf          CompositeIndex  `yaml:"as_of" json:"as_of"`
}

// AccountSnapshot aggregates balances and positions for one venue account at a
// point in time. Produced by the accounting service.
type AccountSnapshot struct {
	VenueID   string          `yaml:"venue_id" json:"venue_id"`
	Balances  []Balance       `yaml:"balances" json:"balances"`
	Positions []Position      `yaml:"positions" json:"positions"`
	Equity    decimal.Decimal `yaml:"equity" json:"equity"`
	AsOf      CompositeIndex  `yaml:"as_of" json:"as_of"`
}
