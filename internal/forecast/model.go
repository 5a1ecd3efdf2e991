// Package forecast fits statistical models to hourly price series and
// projects them forward.
package forecast

import (
	"errors"
	"math"
)

// Model names reported in forecast results.
const (
	ModelAutoARIMA   = "auto_arima"
	ModelDampedTrend = "damped_trend"
	ModelFlat        = "flat"
)

// ErrFit is returned when a model cannot be fitted to a series.
var ErrFit = errors.New("model fit failed")

// Model projects a uniformly spaced series horizon steps ahead.
type Model interface {
	Name() string
	Forecast(values []float64, horizon int) ([]float64, error)
}

// FlatProjection repeats last for every step of the horizon.
func FlatProjection(last float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = last
	}
	return out
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
