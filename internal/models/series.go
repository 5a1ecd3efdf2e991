package models

import (
	"time"
)

// DefaultHorizon is the number of hourly steps forecast when the caller does
// not ask for a specific horizon.
const DefaultHorizon = 24

// HourlyPoint is one bucket of a uniform hourly series.
type HourlyPoint struct {
	Hour  time.Time `json:"ts"`
	Price float64   `json:"price"`
}

// HourlySeries is a uniformly spaced, forward-filled hourly price series for
// one asset. It is derived on every load and never persisted.
type HourlySeries struct {
	AssetID string        `json:"asset_id"`
	Points  []HourlyPoint `json:"points"`

	// Observed counts buckets backed by at least one quote; Filled counts
	// buckets carried forward from an earlier observation.
	Observed int `json:"observed"`
	Filled   int `json:"filled"`
}

// Len returns the number of hourly buckets.
func (s *HourlySeries) Len() int {
	return len(s.Points)
}

// Values returns the bucket prices in chronological order.
func (s *HourlySeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Price
	}
	return values
}

// Last returns the most recent bucket. It panics on an empty series.
func (s *HourlySeries) Last() HourlyPoint {
	return s.Points[len(s.Points)-1]
}

// ForecastPoint is one predicted hourly price.
type ForecastPoint struct {
	Timestamp time.Time `json:"ts"`
	Price     float64   `json:"price"`
}

// ForecastResult is an ordered N-step-ahead hourly forecast. Timestamps
// continue immediately after the last observed hour at hourly spacing.
type ForecastResult struct {
	AssetID     string          `json:"asset_id"`
	Horizon     int             `json:"horizon"`
	Model       string          `json:"model"`
	GeneratedAt time.Time       `json:"generated_at"`
	Points      []ForecastPoint `json:"points"`
}

// Prices returns the predicted prices in order.
func (r *ForecastResult) Prices() []float64 {
	prices := make([]float64, len(r.Points))
	for i, p := range r.Points {
		prices[i] = p.Price
	}
	return prices
}

// FutureHours returns n hourly timestamps starting one hour after last.
func FutureHours(last time.Time, n int) []time.Time {
	hours := make([]time.Time, n)
	for i := range hours {
		hours[i] = last.Add(time.Duration(i+1) * time.Hour)
	}
	return hours
}
