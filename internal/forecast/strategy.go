package forecast

import (
	"fmt"
	"math"
)

// Strategy is the forecasting path chosen once at startup.
type Strategy int

const (
	// StrategyPrimary fits AutoARIMA and falls back per call when a series
	// cannot be fitted.
	StrategyPrimary Strategy = iota
	// StrategyFallback always uses the damped trend model.
	StrategyFallback
)

func (s Strategy) String() string {
	switch s {
	case StrategyPrimary:
		return "primary"
	case StrategyFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Model selection values accepted by Probe.
const (
	SelectAuto     = "auto"
	SelectFallback = "fallback"
)

// ProbeResult records which strategy was chosen and why.
type ProbeResult struct {
	Strategy Strategy
	Reason   string
}

// Probe decides whether the primary model is usable. selection "fallback"
// disables it outright; otherwise the primary is fitted on a synthetic seasonal
// series and rejected if that fails.
func Probe(selection string, primary Model, seasonLength int) ProbeResult {
	if selection == SelectFallback {
		return ProbeResult{Strategy: StrategyFallback, Reason: "primary model disabled by configuration"}
	}
	if primary == nil {
		return ProbeResult{Strategy: StrategyFallback, Reason: "no primary model configured"}
	}

	if seasonLength <= 1 {
		seasonLength = DefaultSeasonLength
	}
	synthetic := make([]float64, 3*seasonLength)
	for i := range synthetic {
		synthetic[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/float64(seasonLength)) + 0.1*float64(i)
	}

	out, err := primary.Forecast(synthetic, seasonLength)
	if err != nil {
		return ProbeResult{Strategy: StrategyFallback, Reason: err.Error()}
	}
	if len(out) != seasonLength || !allFinite(out) {
		return ProbeResult{Strategy: StrategyFallback, Reason: "primary model returned an invalid forecast"}
	}
	return ProbeResult{Strategy: StrategyPrimary, Reason: "probe fit succeeded"}
}
