package series

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// hoursPerYear is the annualization base for hourly volatility.
const hoursPerYear = 365 * 24

// TransformOptions selects the derived columns of a transform. Zero values
// disable a column; a zero Start or End leaves that side of the range open.
type TransformOptions struct {
	Rate       float64
	Window     int
	MinPeriods int

	ReturnPeriods int
	VolWindow     int
	Annualize     bool
	FreqHours     int

	Start time.Time
	End   time.Time
}

// Validate rejects option combinations the column helpers cannot compute.
func (o TransformOptions) Validate() error {
	switch {
	case o.Rate < 0 || math.IsNaN(o.Rate) || math.IsInf(o.Rate, 0):
		return fmt.Errorf("rate must be a finite non-negative number, got %v", o.Rate)
	case o.Window < 0:
		return fmt.Errorf("window must be >= 1, got %d", o.Window)
	case o.MinPeriods < 0 || (o.Window > 0 && o.MinPeriods > o.Window):
		return fmt.Errorf("min periods must be between 1 and window, got %d", o.MinPeriods)
	case o.ReturnPeriods < 0:
		return fmt.Errorf("periods must be >= 1, got %d", o.ReturnPeriods)
	case o.VolWindow < 0:
		return fmt.Errorf("volatility window must be >= 1, got %d", o.VolWindow)
	case o.VolWindow > 0 && o.ReturnPeriods == 0:
		return errors.New("volatility requires returns")
	case o.FreqHours < 0:
		return fmt.Errorf("frequency hours must be >= 1, got %d", o.FreqHours)
	case !o.Start.IsZero() && !o.End.IsZero() && o.End.Before(o.Start):
		return errors.New("end is before start")
	}
	return nil
}

// TransformRow is one quote together with its derived columns. Columns that
// were not requested, or have no value at this row, are null.
type TransformRow struct {
	Timestamp  time.Time  `json:"ts"`
	AssetID    string     `json:"asset_id"`
	Price      float64    `json:"price"`
	Converted  null.Float `json:"price_converted"`
	Smooth     null.Float `json:"price_smooth"`
	Returns    null.Float `json:"price_returns"`
	Volatility null.Float `json:"price_returns_vol"`
}

// Transform derives the requested columns over the full history in quotes and
// then keeps the rows inside [Start, End]. Quotes are deduplicated first, so
// rolling windows see one price per timestamp.
func Transform(quotes []models.Quote, opts TransformOptions) ([]TransformRow, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	quotes = Dedup(quotes)
	prices := make([]float64, len(quotes))
	rows := make([]TransformRow, len(quotes))
	for i, q := range quotes {
		prices[i] = q.Price
		rows[i] = TransformRow{Timestamp: q.Timestamp.UTC(), AssetID: q.AssetID, Price: q.Price}
	}

	if opts.Rate > 0 {
		converted, err := ConvertCurrency(prices, opts.Rate)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Converted = null.FloatFrom(converted[i])
		}
	}

	if opts.Window > 0 {
		smooth, err := SmoothPrices(prices, opts.Window, opts.MinPeriods)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Smooth = smooth[i]
		}
	}

	if opts.ReturnPeriods > 0 {
		returns, err := ComputeReturns(prices, opts.ReturnPeriods)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Returns = returns[i]
		}

		if opts.VolWindow > 0 {
			vol, err := ComputeVolatility(returns, opts.VolWindow, opts.Annualize, opts.FreqHours)
			if err != nil {
				return nil, err
			}
			for i := range rows {
				rows[i].Volatility = vol[i]
			}
		}
	}

	return FilterDateRange(rows, opts.Start, opts.End), nil
}

// ConvertCurrency multiplies every price by rate.
func ConvertCurrency(prices []float64, rate float64) ([]float64, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("conversion rate must be positive, got %v", rate)
	}
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p * rate
	}
	return out, nil
}

// SmoothPrices is the trailing rolling mean over window prices. Rows with
// fewer than minPeriods prices in their window are null; minPeriods of zero
// means one.
func SmoothPrices(prices []float64, window, minPeriods int) ([]null.Float, error) {
	if window < 1 {
		return nil, fmt.Errorf("window must be >= 1, got %d", window)
	}
	if minPeriods == 0 {
		minPeriods = 1
	}
	if minPeriods < 1 || minPeriods > window {
		return nil, fmt.Errorf("min periods must be between 1 and %d, got %d", window, minPeriods)
	}

	out := make([]null.Float, len(prices))
	for i := range prices {
		lo := max(0, i-window+1)
		if i-lo+1 < minPeriods {
			continue
		}
		out[i] = null.FloatFrom(stat.Mean(prices[lo:i+1], nil))
	}
	return out, nil
}

// ComputeReturns gives the simple return price[t]/price[t-periods] - 1. The
// first periods rows have no return and are null.
func ComputeReturns(prices []float64, periods int) ([]null.Float, error) {
	if periods < 1 {
		return nil, fmt.Errorf("periods must be >= 1, got %d", periods)
	}

	out := make([]null.Float, len(prices))
	for i := periods; i < len(prices); i++ {
		prev := prices[i-periods]
		if prev == 0 {
			continue
		}
		out[i] = null.FloatFrom(prices[i]/prev - 1)
	}
	return out, nil
}

// ComputeVolatility is the rolling sample standard deviation of returns over
// window rows, scaled by sqrt(8760/freqHours) when annualize is set. A row is
// null unless its whole window holds returns and the window has at least two.
func ComputeVolatility(returns []null.Float, window int, annualize bool, freqHours int) ([]null.Float, error) {
	if window < 1 {
		return nil, fmt.Errorf("window must be >= 1, got %d", window)
	}
	if freqHours == 0 {
		freqHours = 1
	}
	if freqHours < 1 {
		return nil, fmt.Errorf("frequency hours must be >= 1, got %d", freqHours)
	}

	scale := 1.0
	if annualize {
		scale = math.Sqrt(float64(hoursPerYear) / float64(freqHours))
	}

	out := make([]null.Float, len(returns))
	if window < 2 {
		return out, nil
	}
	buf := make([]float64, 0, window)
	for i := window - 1; i < len(returns); i++ {
		buf = buf[:0]
		for _, r := range returns[i-window+1 : i+1] {
			if !r.Valid {
				break
			}
			buf = append(buf, r.Float64)
		}
		if len(buf) < window {
			continue
		}
		out[i] = null.FloatFrom(stat.StdDev(buf, nil) * scale)
	}
	return out, nil
}

// FilterDateRange keeps the rows, sorted by timestamp, that lie in
// [start, end]. A zero bound is open.
func FilterDateRange(rows []TransformRow, start, end time.Time) []TransformRow {
	lo := 0
	if !start.IsZero() {
		start = start.UTC()
		lo = sort.Search(len(rows), func(i int) bool { return !rows[i].Timestamp.Before(start) })
	}
	hi := len(rows)
	if !end.IsZero() {
		end = end.UTC()
		hi = sort.Search(len(rows), func(i int) bool { return rows[i].Timestamp.After(end) })
	}
	if lo >= hi {
		return []TransformRow{}
	}
	return rows[lo:hi]
}
