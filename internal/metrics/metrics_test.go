package metrics_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/metrics"
	"github.com/nedlands/propnet/internal/store"
	testutil "github.com/nedlands/propnet/internal/testing"
)

func seedSnapshots(t *testing.T, st *store.Store, valuations []float64) {
	t.Helper()
	for i, v := range valuations {
		snap := &domain.NetworkSnapshot{
			NetworkMonth:     i + 1,
			TotalValuation:   decimal.NewFromFloat(v),
			AvgTokenPrice:    decimal.NewFromFloat(1.0 + 0.01*float64(i)),
			AvgYield:         decimal.NewFromFloat(4.5),
			RentCollected:    decimal.NewFromInt(2000),
			DividendsPaid:    decimal.NewFromInt(1600),
			ActionsProcessed: 3,
		}
		require.NoError(t, st.Snapshots.Create(st.DB(), snap))
	}
}

func TestTrailingNeedsHistory(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()
	svc := metrics.New(st, zerolog.Nop())

	_, err := svc.Trailing(12)
	assert.Error(t, err)

	seedSnapshots(t, st, []float64{1000000})
	_, err = svc.Trailing(12)
	assert.Error(t, err)

	snap := &domain.NetworkSnapshot{NetworkMonth: 2, TotalValuation: decimal.NewFromInt(1100000)}
	require.NoError(t, st.Snapshots.Create(st.DB(), snap))
	_, err = svc.Trailing(12)
	assert.NoError(t, err)
}

func TestTrailingReportMath(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()
	svc := metrics.New(st, zerolog.Nop())

	seedSnapshots(t, st, []float64{1000000, 1050000, 1100000, 1200000})

	r, err := svc.Trailing(12)
	require.NoError(t, err)

	assert.Equal(t, 4, r.Months)
	assert.Equal(t, 1, r.FirstMonth)
	assert.Equal(t, 4, r.LastMonth)

	assert.InDelta(t, 1087500, r.ValuationMean, 0.01)
	assert.InDelta(t, 20.0, r.ValuationGrowth, 1e-9)

	// Momentum over a 3-month lookback: 1200000 - 1000000.
	assert.InDelta(t, 200000, r.ValuationMomentum, 0.01)

	// SMA(3) over prices 1.00, 1.01, 1.02, 1.03 ends at 1.02.
	assert.InDelta(t, 1.02, r.TokenPriceSMA, 1e-9)
	assert.InDelta(t, 1.03, r.TokenPriceLatest, 1e-9)

	assert.InDelta(t, 8000, r.RentCollected, 0.01)
	assert.InDelta(t, 6400, r.DividendsPaid, 0.01)
	assert.Equal(t, 12, r.ActionsProcessed)

	assert.InDelta(t, 4.5, r.YieldMean, 1e-9)
	assert.InDelta(t, 0, r.YieldStdDev, 1e-9)
}

func TestTrailingWindowLimitsHistory(t *testing.T) {
	st, cleanup := testutil.NewTestStore(t)
	defer cleanup()
	svc := metrics.New(st, zerolog.Nop())

	seedSnapshots(t, st, []float64{1000000, 1100000, 1200000, 1300000, 1400000, 1500000})

	r, err := svc.Trailing(3)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Months)
	assert.Equal(t, 4, r.FirstMonth)
	assert.Equal(t, 6, r.LastMonth)

	// A short window has no momentum lookback.
	assert.Zero(t, r.ValuationMomentum)
}
