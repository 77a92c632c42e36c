// Package engine assembles the trading system from its parts: bus, ledger,
// order books, execution engine, venue gateway and the service loops. The
// composition is fixed at startup from a validated Config.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/execution"
	"github.com/rxtech-lab/atlas-trading/internal/ledger"
	"github.com/rxtech-lab/atlas-trading/internal/ledger/duckdbstore"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/orderbook"
	"github.com/rxtech-lab/atlas-trading/internal/services"
	"github.com/rxtech-lab/atlas-trading/internal/venue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine owns the assembled system.
type Engine struct {
	config Config
	log    *logger.Logger
	bus    *eventbus.Bus
	book   *ledger.Ledger
	store  ledger.Store
	paper  *venue.PaperGateway
	exec   *execution.Engine

	services []services.Service
}

// NewEngine wires the system from the configuration. A configured store path
// rehydrates the ledger before anything else starts.
func NewEngine(config Config, log *logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: config,
		log:    log,
		bus:    eventbus.NewBus(log, config.BusBufferSize),
		book:   ledger.NewLedger(log),
	}

	if config.StorePath != "" {
		store, err := duckdbstore.NewStore(config.StorePath, log)
		if err != nil {
			return nil, err
		}

		if err := e.book.Rehydrate(context.Background(), store); err != nil {
			_ = store.Close()
			return nil, err
		}

		e.store = store
	}

	e.paper = venue.NewPaperGateway(log)

	venueBook := orderbook.NewVenueOrderBook(log)
	execBook := orderbook.NewExecutionOrderBook(log)

	e.exec = execution.NewEngine(execution.Deps{
		Gateway:   e.paper,
		VenueBook: venueBook,
		ExecBook:  execBook,
		Limits: execution.NewLimits(
			config.Limits.MaxOrdersPerMinute,
			decimal.NewFromFloat(config.Limits.MinOrderSizeNotional),
			decimal.NewFromFloat(config.Limits.MaxOrderSizeNotional)),
		Retry:     config.RetryPolicy(),
		Index:     e.book,
		Publish:   e.bus.Publish,
		Log:       log,
		Simulated: config.Simulated,
	}, config.WideQuoteParams())

	executionService := services.NewExecutionService(e.bus, e.exec, e.paper, log)

	e.services = []services.Service{
		executionService,
		services.NewAllocationService(e.bus, config.AllocationRules(), e.book, log),
		services.NewAccountingService(e.bus, e.book, config.InstrumentMap(),
			config.AssetMap(), config.Venue(), config.AccountType, log),
		services.NewRiskService(e.bus, decimal.NewFromFloat(config.MaxExposureNotional),
			executionService.HaltSymbol, log),
		services.NewAuditService(e.bus, log),
	}

	if e.store != nil {
		e.services = append(e.services, services.NewPersistenceService(
			e.bus, e.store, time.Duration(config.FlushIntervalMs)*time.Millisecond, log))
	}

	return e, nil
}

// Bus exposes the event bus so collaborators can feed market data and
// signals.
func (e *Engine) Bus() *eventbus.Bus {
	return e.bus
}

// Ledger exposes the fact ledger for queries.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.book
}

// Run starts every service loop and blocks until the context is canceled and
// all loops have drained.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine starting",
		zap.String("venue", e.config.VenueID),
		zap.Int("services", len(e.services)),
		zap.Bool("simulated", e.config.Simulated))

	var wg sync.WaitGroup

	for _, service := range e.services {
		wg.Add(1)

		go func(s services.Service) {
			defer wg.Done()

			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				e.log.Error("service stopped",
					zap.String("service", s.Name()), zap.Error(err))
			}
		}(service)
	}

	<-ctx.Done()
	e.bus.Close()
	wg.Wait()

	e.log.Info("engine stopped")

	return e.Close()
}

// Close releases the durable store.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}

	return e.store.Close()
}
