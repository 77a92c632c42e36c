package services

import (
	"context"

	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RiskService watches position facts and halts symbols whose marked exposure
// breaches the configured ceiling. Halting is delegated to the Halt callback
// so the risk loop never touches the order books directly.
type RiskService struct {
	bus         *eventbus.Bus
	maxExposure decimal.Decimal
	halt        func(ctx context.Context, symbol string) error
	lastMid     map[string]decimal.Decimal
	halted      map[string]bool
	log         *logger.Logger
}

// NewRiskService builds the service. A zero maxExposure disables the check.
func NewRiskService(bus *eventbus.Bus, maxExposure decimal.Decimal, halt func(ctx context.Context, symbol string) error, log *logger.Logger) *RiskService {
	return &RiskService{
		bus:         bus,
		maxExposure: maxExposure,
		halt:        halt,
		lastMid:     make(map[string]decimal.Decimal),
		halted:      make(map[string]bool),
		log:         log,
	}
}

func (s *RiskService) Name() string { return "risk" }

func (s *RiskService) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(eventbus.Tags(types.TagMarketData, types.TagPositionUpdate))

	return runLoop(ctx, s.Name(), sub, s.log, s.handle)
}

func (s *RiskService) handle(ctx context.Context, event types.Event) error {
	switch e := event.(type) {
	case types.MarketDataEvent:
		s.lastMid[e.Symbol] = e.Mid()
		return nil

	case types.PositionUpdateEvent:
		return s.check(ctx, e.Update)

	default:
		return nil
	}
}

func (s *RiskService) check(ctx context.Context, update types.PositionUpdate) error {
	if s.maxExposure.Sign() <= 0 || s.halted[update.Symbol] {
		return nil
	}

	mid, ok := s.lastMid[update.Symbol]
	if !ok {
		return nil
	}

	exposure := update.Quantity.Abs().Mul(mid)
	if exposure.LessThanOrEqual(s.maxExposure) {
		return nil
	}

	s.halted[update.Symbol] = true
	s.log.Warn("exposure limit breached, halting symbol",
		zap.String("symbol", update.Symbol),
		zap.String("exposure", exposure.String()),
		zap.String("limit", s.maxExposure.String()))

	if s.halt == nil {
		return nil
	}

	return s.halt(ctx, update.Symbol)
}
