package ledger

import (
	"context"

	"github.com/rxtech-lab/atlas-trading/internal/types"
)

// Store is the durable persistence collaborator for ledger facts. Appends are
// expected to be batched by the caller; Flush makes everything appended so far
// durable. The in-memory ledger stays the source of truth for live queries
// while a write is retried; a fact is only durable once Flush returns nil.
type Store interface {
	// AppendBalances stages balance facts for durability.
	AppendBalances(ctx context.Context, facts []types.BalanceUpdate) error
	// AppendPositions stages position facts for durability.
	AppendPositions(ctx context.Context, facts []types.PositionUpdate) error
	// Flush makes staged facts durable.
	Flush(ctx context.Context) error
	// LoadBalances returns all persisted balance facts in CompositeIndex order.
	LoadBalances(ctx context.Context) ([]types.BalanceUpdate, error)
	// LoadPositions returns all persisted position facts in CompositeIndex order.
	LoadPositions(ctx context.Context) ([]types.PositionUpdate, error)
	// Close releases the underlying storage.
	Close() error
}

// Rehydrate replays persisted facts into the ledger. Facts carry their
// original indexes, so replay order does not affect the result; the sequencer
// is advanced past the highest replayed index so new facts order after them.
func (l *Ledger) Rehydrate(ctx context.Context, store Store) error {
	balances, err := store.LoadBalances(ctx)
	if err != nil {
		return err
	}

	for _, fact := range balances {
		l.RecordBalance(fact)
		l.seq.Advance(fact.Index)
	}

	positions, err := store.LoadPositions(ctx)
	if err != nil {
		return err
	}

	for _, fact := range positions {
		l.RecordPosition(fact)
		l.seq.Advance(fact.Index)
	}

	return nil
}
