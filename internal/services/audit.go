package services

import (
	"context"
	"encoding/json"

	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"go.uber.org/zap"
)

// AuditService writes a structured trail of every non-market-data event. The
// trail is append-only log output; the durable fact store is the persistence
// service's job.
type AuditService struct {
	bus *eventbus.Bus
	log *logger.Logger
}

func NewAuditService(bus *eventbus.Bus, log *logger.Logger) *AuditService {
	return &AuditService{bus: bus, log: log}
}

func (s *AuditService) Name() string { return "audit" }

func (s *AuditService) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(eventbus.AllButMarketData())

	return runLoop(ctx, s.Name(), sub, s.log, s.handle)
}

func (s *AuditService) handle(_ context.Context, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	idx := event.EventIndex()
	s.log.Info("audit",
		zap.String("tag", string(event.Tag())),
		zap.Time("ts", idx.Timestamp),
		zap.Uint64("seq", idx.Sequence),
		zap.ByteString("event", payload))

	return nil
}
