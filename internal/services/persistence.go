package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/ledger"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"go.uber.org/zap"
)

// PersistenceService batches ledger facts and flushes them to the durable
// store on an interval. The in-memory ledger stays the source of truth; a
// failed flush keeps the batch and retries with backoff, and the watermark
// only advances once the store confirms the commit.
type PersistenceService struct {
	bus      *eventbus.Bus
	store    ledger.Store
	interval time.Duration
	log      *logger.Logger

	balances  []types.BalanceUpdate
	positions []types.PositionUpdate
	watermark types.CompositeIndex
}

func NewPersistenceService(bus *eventbus.Bus, store ledger.Store, interval time.Duration, log *logger.Logger) *PersistenceService {
	return &PersistenceService{
		bus:      bus,
		store:    store,
		interval: interval,
		log:      log,
	}
}

func (s *PersistenceService) Name() string { return "persistence" }

// Watermark returns the highest index known to be durable.
func (s *PersistenceService) Watermark() types.CompositeIndex {
	return s.watermark
}

// Run batches fact events and flushes on the interval. On shutdown the
// pending batch gets one final flush before the loop returns.
func (s *PersistenceService) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(eventbus.Tags(types.TagBalanceUpdate, types.TagPositionUpdate))
	defer sub.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return ctx.Err()

		case <-ticker.C:
			s.flush(ctx)

		case event, ok := <-sub.Events():
			if !ok {
				s.flush(context.Background())
				return nil
			}

			s.collect(event)
		}
	}
}

func (s *PersistenceService) collect(event types.Event) {
	switch e := event.(type) {
	case types.BalanceUpdateEvent:
		s.balances = append(s.balances, e.Update)
	case types.PositionUpdateEvent:
		s.positions = append(s.positions, e.Update)
	}
}

// flush writes the pending batch inside one store transaction. The batch is
// kept on failure so no fact is lost; the ledger remains authoritative until
// the commit lands.
func (s *PersistenceService) flush(ctx context.Context) {
	if len(s.balances) == 0 && len(s.positions) == 0 {
		return
	}

	attempt := func() error {
		if err := s.store.AppendBalances(ctx, s.balances); err != nil {
			return err
		}

		if err := s.store.AppendPositions(ctx, s.positions); err != nil {
			return err
		}

		return s.store.Flush(ctx)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		s.log.Error("flush failed, batch retained",
			zap.Int("balances", len(s.balances)),
			zap.Int("positions", len(s.positions)),
			zap.Error(err))

		return
	}

	for _, fact := range s.balances {
		if fact.Index.After(s.watermark) {
			s.watermark = fact.Index
		}
	}

	for _, fact := range s.positions {
		if fact.Index.After(s.watermark) {
			s.watermark = fact.Index
		}
	}

	s.log.Debug("flushed ledger facts",
		zap.Int("balances", len(s.balances)),
		zap.Int("positions", len(s.positions)))

	s.balances = nil
	s.positions = nil
}
