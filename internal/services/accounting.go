package services

import (
	"context"

	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/ledger"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountingService folds fills into the ledger and publishes the resulting
// balance and position facts, followed by a refreshed account snapshot. It is
// the only writer of the ledger, so fact ordering matches fill arrival.
type AccountingService struct {
	bus         *eventbus.Bus
	ledger      *ledger.Ledger
	instruments map[string]types.Instrument
	assets      map[string]types.Asset
	venue       types.Venue
	accountType types.AccountType
	lastMid     map[string]decimal.Decimal
	seenFills   map[string]struct{}
	log         *logger.Logger
}

func NewAccountingService(
	bus *eventbus.Bus,
	book *ledger.Ledger,
	instruments map[string]types.Instrument,
	assets map[string]types.Asset,
	venue types.Venue,
	accountType types.AccountType,
	log *logger.Logger,
) *AccountingService {
	return &AccountingService{
		bus:         bus,
		ledger:      book,
		instruments: instruments,
		assets:      assets,
		venue:       venue,
		accountType: accountType,
		lastMid:     make(map[string]decimal.Decimal),
		seenFills:   make(map[string]struct{}),
		log:         log,
	}
}

func (s *AccountingService) Name() string { return "accounting" }

func (s *AccountingService) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(eventbus.Tags(types.TagMarketData, types.TagVenueOrderUpdated))

	return runLoop(ctx, s.Name(), sub, s.log, s.handle)
}

func (s *AccountingService) handle(_ context.Context, event types.Event) error {
	switch e := event.(type) {
	case types.MarketDataEvent:
		s.lastMid[e.Symbol] = e.Mid()
		return nil

	case types.VenueOrderEvent:
		if e.Fill == nil {
			return nil
		}

		return s.settle(*e.Fill, e.Simulated)

	default:
		return nil
	}
}

// settle records the fill's balance and position facts and publishes them,
// then the snapshot that includes them. Fill ids are settled at most once, so
// a re-delivered fill event cannot double-book the ledger.
func (s *AccountingService) settle(fill types.Fill, simulated bool) error {
	instrument, ok := s.instruments[fill.Symbol]
	if !ok {
		s.log.Warn("fill for unknown instrument", zap.String("symbol", fill.Symbol))
		return nil
	}

	if _, seen := s.seenFills[fill.ID]; fill.ID != "" && seen {
		s.log.Warn("duplicate fill delivery ignored",
			zap.String("fill_id", fill.ID),
			zap.String("symbol", fill.Symbol))
		return nil
	}

	if fill.ID != "" {
		s.seenFills[fill.ID] = struct{}{}
	}

	var asOf types.CompositeIndex

	for _, update := range ledger.NextBalanceUpdates(instrument, s.accountType, fill, simulated) {
		recorded := s.ledger.RecordBalance(update)
		asOf = recorded.Index
		s.bus.Publish(types.BalanceUpdateEvent{Update: recorded})
	}

	prev := s.ledger.PositionAsOf(fill.Symbol, types.LatestIndex())
	recorded := s.ledger.RecordPosition(ledger.NextPositionUpdate(prev, fill, simulated))
	asOf = recorded.Index
	s.bus.Publish(types.PositionUpdateEvent{Update: recorded})

	s.bus.Publish(types.AccountUpdateEvent{Snapshot: s.snapshot(asOf)})

	return nil
}

// snapshot assembles the account state as of the given index. Equity is the
// sum of quote balances plus open positions marked at the last seen mid.
// Balance quantities are rounded to their asset's precision.
func (s *AccountingService) snapshot(asOf types.CompositeIndex) types.AccountSnapshot {
	snap := types.AccountSnapshot{
		VenueID: s.venue.ID,
		AsOf:    asOf,
	}

	equity := decimal.Zero

	for _, key := range s.ledger.BalanceKeys() {
		balance := s.ledger.BalanceAsOf(key, asOf)
		if asset, ok := s.assets[key.Asset]; ok {
			balance.Quantity = balance.Quantity.Round(asset.Precision)
		}
		snap.Balances = append(snap.Balances, balance)

		if s.isQuoteAsset(key.Asset) {
			equity = equity.Add(balance.Quantity)
		}
	}

	for _, symbol := range s.ledger.PositionSymbols() {
		position := s.ledger.PositionAsOf(symbol, asOf)
		snap.Positions = append(snap.Positions, position)

		if mid, ok := s.lastMid[symbol]; ok {
			equity = equity.Add(position.Quantity.Mul(mid))
		}
	}

	snap.Equity = equity

	return snap
}

func (s *AccountingService) isQuoteAsset(asset string) bool {
	for _, instrument := range s.instruments {
		if instrument.QuoteAsset == asset {
			return true
		}
	}

	return false
}
