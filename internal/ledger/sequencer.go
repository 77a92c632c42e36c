package ledger

import (
	"sync"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/types"
)

// Sequencer issues strictly increasing CompositeIndex values for a single
// logical writer. Facts sharing a timestamp get increasing sequence numbers;
// a timestamp that goes backwards (clock skew between sources) is clamped to
// the last issued index so the total order never regresses.
type Sequencer struct {
	mu   sync.Mutex
	last types.CompositeIndex
}

// NextIndex returns the next index for a fact observed at the given time.
func (s *Sequencer) NextIndex(timestamp time.Time) types.CompositeIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := types.NewIndex(timestamp)
	if !idx.After(s.last) {
		idx = s.last.Next()
	}

	s.last = idx

	return idx
}

// Advance moves the sequencer forward to the given index if it is ahead of
// the last issued one. Used when replaying facts that already carry indexes.
func (s *Sequencer) Advance(idx types.CompositeIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx.After(s.last) {
		s.last = idx
	}
}

// Last returns the most recently issued index.
func (s *Sequencer) Last() types.CompositeIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}
