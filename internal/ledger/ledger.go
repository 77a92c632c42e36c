// Package ledger implements the authoritative append-only record of balance
// and position facts, keyed by CompositeIndex and queryable at a point in
// time. The ledger is the single writer of settled truth: nothing else
// mutates balances or positions, all other services read snapshots.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceHistory struct {
	mu    sync.RWMutex
	facts []types.BalanceUpdate
}

type positionEntry struct {
	fact types.PositionUpdate
	// realized is the running sum of RealizedPnLDelta up to and including
	// this fact, maintained on insert so point-in-time queries stay O(log n).
	realized decimal.Decimal
}

type positionHistory struct {
	mu      sync.RWMutex
	entries []positionEntry
}

// Ledger holds balance histories per (venue, account, asset) key and position
// histories per instrument. Appends to distinct keys do not contend: the outer
// lock only guards the key maps, each history carries its own lock.
type Ledger struct {
	mu        sync.RWMutex
	balances  map[types.BalanceKey]*balanceHistory
	positions map[string]*positionHistory
	seq       Sequencer
	log       *logger.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(log *logger.Logger) *Ledger {
	return &Ledger{
		balances:  make(map[types.BalanceKey]*balanceHistory),
		positions: make(map[string]*positionHistory),
		log:       log,
	}
}

// NextIndex issues the next ledger index for a fact observed at the given
// time. Exposed so fact producers can stamp events with the ledger's order.
func (l *Ledger) NextIndex(timestamp time.Time) types.CompositeIndex {
	return l.seq.NextIndex(timestamp)
}

func (l *Ledger) balanceHistoryFor(key types.BalanceKey) *balanceHistory {
	l.mu.RLock()
	history, ok := l.balances[key]
	l.mu.RUnlock()

	if ok {
		return history
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if history, ok = l.balances[key]; ok {
		return history
	}

	history = &balanceHistory{}
	l.balances[key] = history

	return history
}

func (l *Ledger) positionHistoryFor(symbol string) *positionHistory {
	l.mu.RLock()
	history, ok := l.positions[symbol]
	l.mu.RUnlock()

	if ok {
		return history
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if history, ok = l.positions[symbol]; ok {
		return history
	}

	history = &positionHistory{}
	l.positions[symbol] = history

	return history
}

// RecordBalance appends a balance fact. A fact without an index is assigned
// the next one for its event time; a fact carrying an index (replay,
// rehydration) is inserted at its ordered place, so recording order never
// affects query results. The running Quantity is recomputed by the ledger
// from the fold of deltas; a fact whose own Quantity disagrees is logged as
// an anomaly and the fold wins. Returns the fact as recorded.
func (l *Ledger) RecordBalance(fact types.BalanceUpdate) types.BalanceUpdate {
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}

	if fact.Index.IsZero() {
		fact.Index = l.seq.NextIndex(fact.EventTime)
	}

	history := l.balanceHistoryFor(fact.Key())

	history.mu.Lock()
	defer history.mu.Unlock()

	pos := sort.Search(len(history.facts), func(i int) bool {
		return history.facts[i].Index.After(fact.Index)
	})

	history.facts = append(history.facts, types.BalanceUpdate{})
	copy(history.facts[pos+1:], history.facts[pos:])
	history.facts[pos] = fact

	// Refold running balances from the insertion point.
	running := decimal.Zero
	if pos > 0 {
		running = history.facts[pos-1].Quantity
	}

	for i := pos; i < len(history.facts); i++ {
		running = running.Add(history.facts[i].QuantityChange)

		if i == pos && !fact.Quantity.IsZero() && !fact.Quantity.Equal(running) {
			l.log.Warn("balance fact quantity disagrees with running fold",
				zap.String("id", fact.ID),
				zap.String("declared", fact.Quantity.String()),
				zap.String("fold", running.String()))
		}

		history.facts[i].Quantity = running
	}

	return history.facts[pos]
}

// RecordPosition appends a position fact, with the same index assignment and
// ordered-insert semantics as RecordBalance. Quantity and the running realized
// P&L are refolded from the insertion point; AvgEntryPrice and
// RealizedPnLDelta are immutable parts of the fact.
func (l *Ledger) RecordPosition(fact types.PositionUpdate) types.PositionUpdate {
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}

	if fact.Index.IsZero() {
		fact.Index = l.seq.NextIndex(fact.EventTime)
	}

	history := l.positionHistoryFor(fact.Symbol)

	history.mu.Lock()
	defer history.mu.Unlock()

	pos := sort.Search(len(history.entries), func(i int) bool {
		return history.entries[i].fact.Index.After(fact.Index)
	})

	history.entries = append(history.entries, positionEntry{})
	copy(history.entries[pos+1:], history.entries[pos:])
	history.entries[pos] = positionEntry{fact: fact}

	running := decimal.Zero
	realized := decimal.Zero

	if pos > 0 {
		running = history.entries[pos-1].fact.Quantity
		realized = history.entries[pos-1].realized
	}

	for i := pos; i < len(history.entries); i++ {
		running = running.Add(history.entries[i].fact.QuantityChange)
		realized = realized.Add(history.entries[i].fact.RealizedPnLDelta)
		history.entries[i].fact.Quantity = running
		history.entries[i].realized = realized
	}

	return history.entries[pos].fact
}

// BalanceAsOf returns the running balance at or before the given index. An
// empty history answers the zero balance, not an error.
func (l *Ledger) BalanceAsOf(key types.BalanceKey, idx types.CompositeIndex) types.Balance {
	l.mu.RLock()
	history, ok := l.balances[key]
	l.mu.RUnlock()

	if !ok {
		return types.Balance{Key: key, Quantity: decimal.Zero, AsOf: idx}
	}

	history.mu.RLock()
	defer history.mu.RUnlock()

	// First fact strictly after idx; the one before it is the answer.
	pos := sort.Search(len(history.facts), func(i int) bool {
		return history.facts[i].Index.After(idx)
	})

	if pos == 0 {
		return types.Balance{Key: key, Quantity: decimal.Zero, AsOf: idx}
	}

	return types.Balance{
		Key:      key,
		Quantity: history.facts[pos-1].Quantity,
		AsOf:     idx,
	}
}

// PositionAsOf returns the instrument exposure at or before the given index.
func (l *Ledger) PositionAsOf(symbol string, idx types.CompositeIndex) types.Position {
	l.mu.RLock()
	history, ok := l.positions[symbol]
	l.mu.RUnlock()

	if !ok {
		return types.Position{Symbol: symbol, Quantity: decimal.Zero, AsOf: idx}
	}

	history.mu.RLock()
	defer history.mu.RUnlock()

	pos := sort.Search(len(history.entries), func(i int) bool {
		return history.entries[i].fact.Index.After(idx)
	})

	if pos == 0 {
		return types.Position{Symbol: symbol, Quantity: decimal.Zero, AsOf: idx}
	}

	entry := history.entries[pos-1]

	return types.Position{
		Symbol:        symbol,
		Quantity:      entry.fact.Quantity,
		AvgEntryPrice: entry.fact.AvgEntryPrice,
		RealizedPnL:   entry.realized,
		AsOf:          idx,
	}
}

// BalancesInRange returns the balance facts for a key with index in
// [from, to). Callers typically pass NewIndex and MaxIndex bounds.
func (l *Ledger) BalancesInRange(key types.BalanceKey, from, to types.CompositeIndex) []types.BalanceUpdate {
	l.mu.RLock()
	history, ok := l.balances[key]
	l.mu.RUnlock()

	if !ok {
		return nil
	}

	history.mu.RLock()
	defer history.mu.RUnlock()

	lo := sort.Search(len(history.facts), func(i int) bool {
		return !history.facts[i].Index.Before(from)
	})
	hi := sort.Search(len(history.facts), func(i int) bool {
		return !history.facts[i].Index.Before(to)
	})

	out := make([]types.BalanceUpdate, hi-lo)
	copy(out, history.facts[lo:hi])

	return out
}

// BalanceKeys returns every balance key with recorded history.
func (l *Ledger) BalanceKeys() []types.BalanceKey {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]types.BalanceKey, 0, len(l.balances))
	for key := range l.balances {
		keys = append(keys, key)
	}

	return keys
}

// PositionSymbols returns every instrument with recorded position history.
func (l *Ledger) PositionSymbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	symbols := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		symbols = append(symbols, symbol)
	}

	return symbols
}
