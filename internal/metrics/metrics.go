// Package metrics derives trend statistics from committed monthly
// snapshots. Everything here is read-only over history; it never
// mutates simulation state.
package metrics

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/store"
)

// smaPeriod is the window for the token price moving average.
const smaPeriod = 3

// momentumPeriod is the lookback for valuation momentum.
const momentumPeriod = 3

// Report summarizes network history over a trailing window of months.
type Report struct {
	Months            int     `json:"months"`
	FirstMonth        int     `json:"first_month"`
	LastMonth         int     `json:"last_month"`
	ValuationMean     float64 `json:"valuation_mean"`
	ValuationStdDev   float64 `json:"valuation_std_dev"`
	ValuationGrowth   float64 `json:"valuation_growth_pct"`
	ValuationMomentum float64 `json:"valuation_momentum"`
	TokenPriceSMA     float64 `json:"token_price_sma"`
	TokenPriceLatest  float64 `json:"token_price_latest"`
	YieldMean         float64 `json:"yield_mean"`
	YieldStdDev       float64 `json:"yield_std_dev"`
	RentCollected     float64 `json:"rent_collected_total"`
	DividendsPaid     float64 `json:"dividends_paid_total"`
	ActionsProcessed  int     `json:"actions_processed_total"`
}

// Service computes reports from snapshot history.
type Service struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates a metrics service.
func New(st *store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		log:   log.With().Str("component", "metrics").Logger(),
	}
}

// Trailing builds a report over the most recent months of history.
// At least two snapshots are required; with fewer there is no trend.
func (s *Service) Trailing(months int) (*Report, error) {
	if months <= 0 {
		months = 12
	}
	snapshots, err := s.store.Snapshots.List(s.store.DB(), months)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	if len(snapshots) < 2 {
		return nil, fmt.Errorf("need at least 2 months of history, have %d", len(snapshots))
	}
	return buildReport(snapshots), nil
}

// buildReport computes the statistics over chronologically ordered
// snapshots.
func buildReport(snapshots []*domain.NetworkSnapshot) *Report {
	valuations := make([]float64, len(snapshots))
	prices := make([]float64, len(snapshots))
	yields := make([]float64, len(snapshots))

	r := &Report{
		Months:     len(snapshots),
		FirstMonth: snapshots[0].NetworkMonth,
		LastMonth:  snapshots[len(snapshots)-1].NetworkMonth,
	}

	for i, snap := range snapshots {
		valuations[i] = snap.TotalValuation.InexactFloat64()
		prices[i] = snap.AvgTokenPrice.InexactFloat64()
		yields[i] = snap.AvgYield.InexactFloat64()
		r.RentCollected += snap.RentCollected.InexactFloat64()
		r.DividendsPaid += snap.DividendsPaid.InexactFloat64()
		r.ActionsProcessed += snap.ActionsProcessed
	}

	r.ValuationMean = stat.Mean(valuations, nil)
	r.ValuationStdDev = stat.StdDev(valuations, nil)
	r.YieldMean = stat.Mean(yields, nil)
	r.YieldStdDev = stat.StdDev(yields, nil)

	if first := valuations[0]; first != 0 {
		r.ValuationGrowth = (valuations[len(valuations)-1] - first) / first * 100
	}

	r.TokenPriceLatest = prices[len(prices)-1]
	r.TokenPriceSMA = lastValid(talib.Sma(prices, minInt(smaPeriod, len(prices))))
	if len(valuations) > momentumPeriod {
		r.ValuationMomentum = lastValid(talib.Mom(valuations, momentumPeriod))
	}

	return r
}

// lastValid returns the last non-NaN value of a talib output series.
func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] == series[i] {
			return series[i]
		}
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
