// Package services hosts the event loops that react to bus traffic. Every
// service owns a private subscription and processes one event at a time; a
// dequeued event is always handled to completion before the loop honors
// cancellation, so shutdown never drops work in flight.
package services

import (
	"context"

	"github.com/rxtech-lab/atlas-trading/internal/eventbus"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"go.uber.org/zap"
)

// Service is one long-running event loop started by the engine.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// runLoop drains the subscription until the context is canceled or the bus
// closes. Handler errors are logged and the loop keeps going; a bad event
// must never take the service down.
func runLoop(
	ctx context.Context,
	name string,
	sub *eventbus.Subscription,
	log *logger.Logger,
	handle func(ctx context.Context, event types.Event) error,
) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}

			if err := handle(ctx, event); err != nil {
				log.Error("event handling failed",
					zap.String("service", name),
					zap.String("tag", string(event.Tag())),
					zap.Error(err))
			}
		}
	}
}
