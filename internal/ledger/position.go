package ledger

import (
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
)

// NextPositionUpdate derives the position fact produced by applying a fill to
// the previous exposure. Increasing exposure re-weights the average entry
// price; reducing exposure realizes P&L against it; crossing through zero
// realizes the whole prior position and opens the residual at the fill price.
func NextPositionUpdate(prev types.Position, fill types.Fill, simulated bool) types.PositionUpdate {
	change := fill.Quantity
	if fill.Side == types.SideSell {
		change = change.Neg()
	}

	newQty := prev.Quantity.Add(change)

	avgEntry := prev.AvgEntryPrice
	realized := decimal.Zero

	switch {
	case prev.Quantity.IsZero():
		avgEntry = fill.Price

	case prev.Quantity.Sign() == change.Sign():
		// Increasing exposure: volume-weighted entry price.
		notional := prev.AvgEntryPrice.Mul(prev.Quantity.Abs()).
			Add(fill.Price.Mul(change.Abs()))
		avgEntry = notional.Div(newQty.Abs())

	default:
		closed := decimal.Min(change.Abs(), prev.Quantity.Abs())
		perUnit := fill.Price.Sub(prev.AvgEntryPrice)
		if prev.Quantity.Sign() < 0 {
			perUnit = perUnit.Neg()
		}

		realized = perUnit.Mul(closed)

		if newQty.IsZero() {
			avgEntry = decimal.Zero
		} else if newQty.Sign() != prev.Quantity.Sign() {
			// Flipped through flat: the residual opens at the fill price.
			avgEntry = fill.Price
		}
	}

	return types.PositionUpdate{
		EventTime:        fill.Timestamp,
		Symbol:           fill.Symbol,
		QuantityChange:   change,
		Quantity:         newQty,
		AvgEntryPrice:    avgEntry,
		RealizedPnLDelta: realized,
		Simulated:        simulated,
	}
}

// NextBalanceUpdates derives the pair of balance facts produced by a fill:
// base asset up and quote asset down for a buy, the reverse for a sell.
func NextBalanceUpdates(instrument types.Instrument, accountType types.AccountType, fill types.Fill, simulated bool) []types.BalanceUpdate {
	baseChange := fill.Quantity
	quoteChange := fill.Quantity.Mul(fill.Price).Neg()

	if fill.Side == types.SideSell {
		baseChange = baseChange.Neg()
		quoteChange = quoteChange.Neg()
	}

	return []types.BalanceUpdate{
		{
			EventTime:      fill.Timestamp,
			VenueID:        instrument.VenueID,
			AccountType:    accountType,
			Asset:          instrument.BaseAsset,
			QuantityChange: baseChange,
			Simulated:      simulated,
		},
		{
			EventTime:      fill.Timestamp,
			VenueID:        instrument.VenueID,
			AccountType:    accountType,
			Asset:          instrument.QuoteAsset,
			QuantityChange: quoteChange,
			Simulated:      simulated,
		},
	}
}
