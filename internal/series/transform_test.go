package series

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

func floats(values []null.Float) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if v.Valid {
			out[i] = v.Float64
		}
	}
	return out
}

func assertNullFloats(t *testing.T, want []any, got []null.Float) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		if w == nil {
			assert.False(t, got[i].Valid, "row %d should be null, got %v", i, floats(got)[i])
			continue
		}
		require.True(t, got[i].Valid, "row %d should have a value", i)
		assert.InDelta(t, w.(float64), got[i].Float64, 1e-9, "row %d", i)
	}
}

func TestConvertCurrency(t *testing.T) {
	out, err := ConvertCurrency([]float64{100, 250.5}, 0.9)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{90, 225.45}, out, 1e-9)

	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := ConvertCurrency([]float64{1}, rate)
		assert.Error(t, err, "rate %v", rate)
	}
}

func TestSmoothPrices(t *testing.T) {
	prices := []float64{100, 110, 121, 133.1}

	tests := []struct {
		name       string
		window     int
		minPeriods int
		want       []any
	}{
		{"window one is identity", 1, 1, []any{100.0, 110.0, 121.0, 133.1}},
		{"partial windows from the first row", 2, 0, []any{100.0, 105.0, 115.5, 127.05}},
		{"full windows only", 3, 3, []any{nil, nil, 331.0 / 3, 364.1 / 3}},
		{"window longer than series", 10, 2, []any{nil, 105.0, 331.0 / 3, 464.1 / 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SmoothPrices(prices, tt.window, tt.minPeriods)
			require.NoError(t, err)
			assertNullFloats(t, tt.want, got)
		})
	}

	_, err := SmoothPrices(prices, 0, 1)
	assert.Error(t, err)
	_, err = SmoothPrices(prices, 2, 3)
	assert.Error(t, err)
}

func TestComputeReturns(t *testing.T) {
	prices := []float64{100, 110, 99, 108.9}

	got, err := ComputeReturns(prices, 1)
	require.NoError(t, err)
	assertNullFloats(t, []any{nil, 0.1, -0.1, 0.1}, got)

	got, err = ComputeReturns(prices, 2)
	require.NoError(t, err)
	assertNullFloats(t, []any{nil, nil, -0.01, -0.01}, got)

	got, err = ComputeReturns(prices, 5)
	require.NoError(t, err)
	assertNullFloats(t, []any{nil, nil, nil, nil}, got)

	_, err = ComputeReturns(prices, 0)
	assert.Error(t, err)
}

func TestComputeVolatility(t *testing.T) {
	returns := []null.Float{{}, null.FloatFrom(0.1), null.FloatFrom(-0.1), null.FloatFrom(0.1)}
	std := math.Sqrt(0.02)

	tests := []struct {
		name      string
		window    int
		annualize bool
		freqHours int
		want      []any
	}{
		{"sample std", 2, false, 1, []any{nil, nil, std, std}},
		{"annualized hourly", 2, true, 1, []any{nil, nil, std * math.Sqrt(8760), std * math.Sqrt(8760)}},
		{"annualized four hourly", 2, true, 4, []any{nil, nil, std * math.Sqrt(2190), std * math.Sqrt(2190)}},
		{"window spanning a missing return", 3, false, 1, []any{nil, nil, nil, math.Sqrt(0.04 / 3)}},
		{"single value window has no std", 1, false, 1, []any{nil, nil, nil, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeVolatility(returns, tt.window, tt.annualize, tt.freqHours)
			require.NoError(t, err)
			assertNullFloats(t, tt.want, got)
		})
	}

	_, err := ComputeVolatility(returns, 0, false, 1)
	assert.Error(t, err)
	_, err = ComputeVolatility(returns, 2, true, -4)
	assert.Error(t, err)
}

func TestFilterDateRange(t *testing.T) {
	var rows []TransformRow
	for i := 0; i < 5; i++ {
		rows = append(rows, TransformRow{Timestamp: t0.Add(time.Duration(i) * time.Hour), Price: float64(i + 1)})
	}
	east := time.FixedZone("UTC+2", 2*60*60)

	tests := []struct {
		name       string
		start, end time.Time
		want       []float64
	}{
		{"inclusive bounds", t0.Add(time.Hour), t0.Add(3 * time.Hour), []float64{2, 3, 4}},
		{"open start", time.Time{}, t0.Add(time.Hour), []float64{1, 2}},
		{"open end", t0.Add(4 * time.Hour), time.Time{}, []float64{5}},
		{"bounds in another zone", t0.Add(time.Hour).In(east), t0.Add(time.Hour).In(east), []float64{2}},
		{"outside history", t0.Add(24 * time.Hour), t0.Add(48 * time.Hour), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDateRange(rows, tt.start, tt.end)
			var prices []float64
			for _, r := range got {
				prices = append(prices, r.Price)
			}
			assert.Equal(t, tt.want, prices)
			assert.NotNil(t, got)
		})
	}
}

func TestTransform(t *testing.T) {
	quotes := []models.Quote{
		quote(2*time.Hour, 99),
		quote(0, 100),
		quote(time.Hour, 110),
		quote(3*time.Hour, 108.9),
		quote(3*time.Hour, 108.9),
	}

	rows, err := Transform(quotes, TransformOptions{
		Rate:          2,
		Window:        2,
		ReturnPeriods: 1,
		VolWindow:     2,
		Start:         t0.Add(time.Hour),
		End:           t0.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, t0.Add(time.Hour), rows[0].Timestamp)
	assert.InDelta(t, 220, rows[0].Converted.Float64, 1e-9)
	assert.InDelta(t, 105, rows[0].Smooth.Float64, 1e-9)
	assert.InDelta(t, 0.1, rows[0].Returns.Float64, 1e-9)
	// Columns are computed before the range filter, so the first kept row
	// still has its return while its volatility window is incomplete.
	assert.False(t, rows[0].Volatility.Valid)
	assert.InDelta(t, math.Sqrt(0.02), rows[1].Volatility.Float64, 1e-9)
}

func TestTransform_UnrequestedColumnsAreNull(t *testing.T) {
	rows, err := Transform([]models.Quote{quote(0, 100)}, TransformOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	data, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ts": "2024-01-01T00:00:00Z",
		"asset_id": "bitcoin",
		"price": 100,
		"price_converted": null,
		"price_smooth": null,
		"price_returns": null,
		"price_returns_vol": null
	}`, string(data))
}

func TestTransformOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts TransformOptions
	}{
		{"negative rate", TransformOptions{Rate: -1}},
		{"negative window", TransformOptions{Window: -2}},
		{"min periods above window", TransformOptions{Window: 2, MinPeriods: 3}},
		{"negative periods", TransformOptions{ReturnPeriods: -1}},
		{"volatility without returns", TransformOptions{VolWindow: 5}},
		{"negative frequency", TransformOptions{ReturnPeriods: 1, VolWindow: 2, FreqHours: -1}},
		{"reversed range", TransformOptions{Start: t0.Add(time.Hour), End: t0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.opts.Validate())
			_, err := Transform([]models.Quote{quote(0, 1)}, tt.opts)
			assert.Error(t, err)
		})
	}

	assert.NoError(t, TransformOptions{Window: 3, MinPeriods: 3}.Validate())
}
