package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Damped trend parameter ranges.
const (
	phiMin = 0.80
	phiMax = 0.98
	eps    = 1e-4
)

// DampedTrend is additive exponential smoothing with a damped trend (Holt).
// Smoothing parameters are estimated by minimising one-step-ahead squared
// error with Nelder-Mead.
type DampedTrend struct {
	MaxIterations int
}

// NewDampedTrend returns a damped trend model with default settings.
func NewDampedTrend() *DampedTrend {
	return &DampedTrend{MaxIterations: 1000}
}

func (m *DampedTrend) Name() string { return ModelDampedTrend }

type holtParams struct {
	alpha, beta, phi float64
}

type holtState struct {
	level, trend float64
	sse          float64
}

// Forecast fits the model to values and projects horizon steps.
func (m *DampedTrend) Forecast(values []float64, horizon int) ([]float64, error) {
	switch len(values) {
	case 0:
		return nil, fmt.Errorf("%w: %s needs at least one point", ErrFit, m.Name())
	case 1, 2:
		return FlatProjection(values[len(values)-1], horizon), nil
	}

	params := m.fit(values)
	state := runHolt(values, params)

	out := make([]float64, horizon)
	damp := 0.0
	step := 1.0
	for h := range out {
		step *= params.phi
		damp += step
		out[h] = state.level + damp*state.trend
	}

	if !allFinite(out) {
		return nil, fmt.Errorf("%w: %s produced non-finite values", ErrFit, m.Name())
	}
	return out, nil
}

func (m *DampedTrend) fit(values []float64) holtParams {
	initial := []float64{logit(0.5), logit(0.1), logit((0.95 - phiMin) / (phiMax - phiMin))}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sse := runHolt(values, decodeParams(x)).sse
			if math.IsNaN(sse) || math.IsInf(sse, 0) {
				return math.MaxFloat64
			}
			return sse
		},
	}

	settings := &optimize.Settings{MajorIterations: m.MaxIterations}
	// Hitting the iteration limit still leaves a usable simplex minimum.
	result, _ := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if result == nil || len(result.X) != len(initial) || !allFinite(result.X) {
		return decodeParams(initial)
	}
	return decodeParams(result.X)
}

func runHolt(values []float64, p holtParams) holtState {
	s := holtState{level: values[0], trend: values[1] - values[0]}
	for t := 1; t < len(values); t++ {
		pred := s.level + p.phi*s.trend
		e := values[t] - pred
		s.sse += e * e

		prev := s.level
		s.level = p.alpha*values[t] + (1-p.alpha)*pred
		s.trend = p.beta*(s.level-prev) + (1-p.beta)*p.phi*s.trend
	}
	return s
}

// decodeParams maps unconstrained optimiser coordinates into valid ranges.
func decodeParams(x []float64) holtParams {
	return holtParams{
		alpha: eps + (1-2*eps)*sigmoid(x[0]),
		beta:  eps + (1-2*eps)*sigmoid(x[1]),
		phi:   phiMin + (phiMax-phiMin)*sigmoid(x[2]),
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
