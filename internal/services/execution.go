package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/execution"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/internal/venue"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"go.uber.org/zap"
)

// ExecutionService owns the execution engine and its order books. It turns
// allocation events into execution orders and feeds market data to the
// quoting algorithms. Fills from the paper venue are handled on the same
// goroutine as market data, so the books never see concurrent mutation.
type ExecutionService struct {
	bus      *eventbus.Bus
	engine   *execution.Engine
	paper    *venue.PaperGateway
	commands chan func(ctx context.Context) error
	log      *logger.Logger
}

// NewExecutionService builds the service. paper may be nil when a live
// gateway delivers fills through another path.
func NewExecutionService(bus *eventbus.Bus, engine *execution.Engine, paper *venue.PaperGateway, log *logger.Logger) *ExecutionService {
	return &ExecutionService{
		bus:      bus,
		engine:   engine,
		paper:    paper,
		commands: make(chan func(ctx context.Context) error, 16),
		log:      log,
	}
}

func (s *ExecutionService) Name() string { return "execution" }

// HaltSymbol asks the loop to cancel every active execution order on the
// symbol. The cancel runs on the service goroutine, never on the caller's.
func (s *ExecutionService) HaltSymbol(ctx context.Context, symbol string) error {
	select {
	case s.commands <- func(ctx context.Context) error {
		return s.engine.CancelAllForSymbol(ctx, symbol)
	}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains market data, allocations and commands until the context is
// canceled.
func (s *ExecutionService) Run(ctx context.Context) error {
	if s.paper != nil {
		// The callback fires inside OnMarketData below, on this loop's
		// goroutine.
		s.paper.OnFill = func(fill types.Fill) {
			if err := s.engine.OnFill(ctx, fill); err != nil {
				s.log.Error("fill handling failed",
					zap.String("venue_order_id", fill.VenueOrderID), zap.Error(err))
			}
		}
	}

	sub := s.bus.Subscribe(eventbus.Tags(types.TagMarketData, types.TagAllocation))
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case command := <-s.commands:
			if err := command(ctx); err != nil {
				s.log.Error("command failed", zap.Error(err))
			}

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}

			if err := s.handle(ctx, event); err != nil {
				s.log.Error("event handling failed",
					zap.String("service", s.Name()),
					zap.String("tag", string(event.Tag())),
					zap.Error(err))
			}
		}
	}
}

func (s *ExecutionService) handle(ctx context.Context, event types.Event) error {
	switch e := event.(type) {
	case types.MarketDataEvent:
		if s.paper != nil {
			s.paper.OnMarketData(e)
		}

		return s.engine.OnMarketData(ctx, e)

	case types.AllocationEvent:
		return s.submit(ctx, e)

	default:
		return nil
	}
}

func (s *ExecutionService) submit(ctx context.Context, alloc types.AllocationEvent) error {
	if alloc.TargetQuantity.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder,
			"allocation for %s has no quantity", alloc.Symbol)
	}

	order := types.ExecutionOrder{
		ID:             uuid.New().String(),
		Symbol:         alloc.Symbol,
		Side:           alloc.Side,
		ExecutionType:  alloc.ExecutionType,
		TargetQuantity: alloc.TargetQuantity,
		Status:         types.ExecutionOrderStatusActive,
		StrategyName:   alloc.StrategyName,
		CreatedAt:      time.Now().UTC(),
	}

	return s.engine.Submit(ctx, order)
}
