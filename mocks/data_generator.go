package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/shopspring/decimal"
)

// DataGenerator generates realistic top-of-book market data for tests and
// benchmarks.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how market data is generated.
type GeneratorConfig struct {
	// Symbol is the instrument symbol (e.g., "BTC-USDT")
	Symbol string
	// StartTime is the beginning of the quote series
	StartTime time.Time
	// Interval is the duration between quotes
	Interval time.Duration
	// Count is the number of quotes to generate
	Count int
	// InitialMid is the starting mid price
	InitialMid float64
	// Volatility controls mid movement per quote (0.002 = 0.2%)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// SpreadPct is the bid/ask half-spread as a fraction of the mid
	SpreadPct float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:     "BTC-USDT",
		StartTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:   time.Second,
		Count:      10000,
		InitialMid: 100.0,
		Volatility: 0.002,
		Trend:      0.0,
		SpreadPct:  0.0005,
	}
}

// Generate creates a quote series based on the configuration. The mid follows
// a geometric Brownian motion model for realistic price movements.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.MarketDataEvent {
	quotes := make([]types.MarketDataEvent, config.Count)
	currentMid := config.InitialMid
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		// Box-Muller transform for a normally distributed step.
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count)
		next := currentMid * (1 + config.Volatility*z + drift)
		if next <= 0 {
			next = currentMid * 0.99 // Prevent negative prices
		}

		halfSpread := next * config.SpreadPct

		quotes[i] = types.MarketDataEvent{
			Symbol:    config.Symbol,
			Bid:       decimal.NewFromFloat(roundToDecimals(next-halfSpread, 4)),
			Ask:       decimal.NewFromFloat(roundToDecimals(next+halfSpread, 4)),
			EventTime: currentTime,
		}

		currentMid = next
		currentTime = currentTime.Add(config.Interval)
	}

	return quotes
}

// GenerateMultiSymbol generates quote series for multiple symbols.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, baseConfig GeneratorConfig) []types.MarketDataEvent {
	var all []types.MarketDataEvent

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		// Vary initial mid and volatility slightly per symbol
		config.InitialMid = baseConfig.InitialMid * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		all = append(all, g.Generate(config)...)
	}

	return all
}

// Generate10K returns ten thousand quotes for the symbol with a fixed seed,
// for benchmarks that want a ready-made stream.
func Generate10K(symbol string) []types.MarketDataEvent {
	config := DefaultConfig()
	config.Symbol = symbol

	return NewDataGenerator(42).Generate(config)
}

func roundToDecimals(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))

	return math.Round(value*factor) / factor
}
