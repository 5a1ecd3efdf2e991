package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultSeasonLength is the daily cycle of an hourly series.
const DefaultSeasonLength = 24

// AutoARIMA searches a small grid of seasonal autoregressive models over
// regular and seasonal differences and keeps the one with the lowest
// information criterion. Coefficients are estimated by least squares.
type AutoARIMA struct {
	SeasonLength int
	MaxP         int
	MaxSeasonalP int
}

// NewAutoARIMA returns a searcher over p<=2, d<=1, P<=1, D<=1.
func NewAutoARIMA(seasonLength int) *AutoARIMA {
	if seasonLength <= 1 {
		seasonLength = DefaultSeasonLength
	}
	return &AutoARIMA{SeasonLength: seasonLength, MaxP: 2, MaxSeasonalP: 1}
}

func (m *AutoARIMA) Name() string { return ModelAutoARIMA }

type arimaOrder struct {
	p, d, sp, sd int
}

func (o arimaOrder) String() string {
	return fmt.Sprintf("(%d,%d,0)(%d,%d,0)", o.p, o.d, o.sp, o.sd)
}

type arimaFit struct {
	order    arimaOrder
	season   int
	arLags   []int
	diffLags []int
	coef     []float64
	score    float64
}

// Forecast selects the best order for values and projects horizon steps.
func (m *AutoARIMA) Forecast(values []float64, horizon int) ([]float64, error) {
	if len(values) < 3 {
		return nil, fmt.Errorf("%w: %s needs at least 3 points, have %d", ErrFit, m.Name(), len(values))
	}

	best, err := m.selectOrder(values)
	if err != nil {
		return nil, err
	}

	out, err := best.forecast(values, horizon)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *AutoARIMA) selectOrder(values []float64) (*arimaFit, error) {
	var best *arimaFit
	var lastErr error

	for sd := 0; sd <= 1; sd++ {
		for d := 0; d <= 1; d++ {
			for sp := 0; sp <= m.MaxSeasonalP; sp++ {
				for p := 0; p <= m.MaxP; p++ {
					fit, err := fitOrder(values, arimaOrder{p: p, d: d, sp: sp, sd: sd}, m.SeasonLength)
					if err != nil {
						lastErr = err
						continue
					}
					if best == nil || fit.score < best.score {
						best = fit
					}
				}
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no candidate order fits: %v", ErrFit, lastErr)
	}
	return best, nil
}

func fitOrder(values []float64, order arimaOrder, season int) (*arimaFit, error) {
	fit := &arimaFit{order: order, season: season}
	for i := 0; i < order.sd; i++ {
		fit.diffLags = append(fit.diffLags, season)
	}
	for i := 0; i < order.d; i++ {
		fit.diffLags = append(fit.diffLags, 1)
	}
	for i := 1; i <= order.p; i++ {
		fit.arLags = append(fit.arLags, i)
	}
	for i := 1; i <= order.sp; i++ {
		fit.arLags = append(fit.arLags, i*season)
	}

	w := values
	for _, lag := range fit.diffLags {
		w = difference(w, lag)
	}

	maxLag := 0
	for _, lag := range fit.arLags {
		maxLag = max(maxLag, lag)
	}

	k := 1 + len(fit.arLags)
	rows := len(w) - maxLag
	if rows < 2*k+2 {
		return nil, fmt.Errorf("order %s: %d usable rows for %d parameters", order, max(rows, 0), k)
	}

	x := mat.NewDense(rows, k, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := maxLag + r
		x.Set(r, 0, 1)
		for j, lag := range fit.arLags {
			x.Set(r, j+1, w[t-lag])
		}
		y.SetVec(r, w[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("order %s: %w", order, err)
	}

	fit.coef = make([]float64, k)
	for i := range fit.coef {
		fit.coef[i] = beta.AtVec(i)
	}
	if !allFinite(fit.coef) {
		return nil, fmt.Errorf("order %s: non-finite coefficients", order)
	}

	var resid mat.VecDense
	resid.MulVec(x, &beta)
	resid.SubVec(y, &resid)
	rss := mat.Dot(&resid, &resid)

	sigma2 := math.Max(rss/float64(rows), 1e-12)
	// AIC per usable observation so differenced candidates compare on one scale.
	fit.score = math.Log(sigma2) + 2*float64(k)/float64(rows)
	return fit, nil
}

func (f *arimaFit) forecast(values []float64, horizon int) ([]float64, error) {
	stages := make([][]float64, len(f.diffLags)+1)
	stages[0] = append([]float64(nil), values...)
	for i, lag := range f.diffLags {
		stages[i+1] = difference(stages[i], lag)
	}

	top := len(stages) - 1
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		w := stages[top]
		next := f.coef[0]
		for j, lag := range f.arLags {
			next += f.coef[j+1] * w[len(w)-lag]
		}
		stages[top] = append(w, next)

		for i := top - 1; i >= 0; i-- {
			lag := f.diffLags[i]
			below := stages[i+1]
			stages[i] = append(stages[i], below[len(below)-1]+stages[i][len(stages[i])-lag])
		}

		out[h] = stages[0][len(stages[0])-1]
	}

	if !allFinite(out) {
		return nil, fmt.Errorf("%w: order %s diverged", ErrFit, f.order)
	}
	return out, nil
}

func difference(x []float64, lag int) []float64 {
	if len(x) <= lag {
		return nil
	}
	out := make([]float64, len(x)-lag)
	for i := range out {
		out[i] = x[i+lag] - x[i]
	}
	return out
}
