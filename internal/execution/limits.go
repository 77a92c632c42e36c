package execution

import (
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Limits enforces the immutable order rate and size limits supplied at
// startup. The rate limiter is checked without blocking: an execution
// algorithm that cannot place now reports the violation and re-evaluates on
// the next market update rather than stalling its service loop.
type Limits struct {
	limiter     *rate.Limiter
	minNotional decimal.Decimal
	maxNotional decimal.Decimal
}

// NewLimits creates limits from the configured values. maxOrdersPerMinute of
// zero disables rate limiting; zero notional bounds disable the respective
// check.
func NewLimits(maxOrdersPerMinute int, minNotional, maxNotional decimal.Decimal) *Limits {
	var limiter *rate.Limiter
	if maxOrdersPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(maxOrdersPerMinute)/60.0), maxOrdersPerMinute)
	}

	return &Limits{
		limiter:     limiter,
		minNotional: minNotional,
		maxNotional: maxNotional,
	}
}

// CheckNotional validates the order's notional value against the configured
// bounds.
func (l *Limits) CheckNotional(quantity, price decimal.Decimal) error {
	notional := quantity.Mul(price).Abs()

	if l.maxNotional.Sign() > 0 && notional.GreaterThan(l.maxNotional) {
		return errors.Newf(errors.ErrCodeNotionalTooLarge,
			"order notional %s exceeds limit %s", notional, l.maxNotional)
	}

	if l.minNotional.Sign() > 0 && notional.LessThan(l.minNotional) {
		return errors.Newf(errors.ErrCodeNotionalTooSmall,
			"order notional %s below minimum %s", notional, l.minNotional)
	}

	return nil
}

// ReserveOrder consumes one order slot from the rate limiter.
func (l *Limits) ReserveOrder() error {
	if l.limiter == nil {
		return nil
	}

	if !l.limiter.Allow() {
		return errors.New(errors.ErrCodeOrderRateExceeded, "order rate limit exceeded")
	}

	return nil
}
