// Package models provides the data structures shared by the ingestion pipeline,
// the partitioned quote store and the forecast engine.
package models

import (
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// PartitionLayout is the directory name format of a daily partition.
const PartitionLayout = "2006-01-02"

// Quote is a single price observation for one asset.
type Quote struct {
	Timestamp time.Time  `json:"ts"`
	AssetID   string     `json:"asset_id"`
	Price     float64    `json:"price"`
	ChangePct null.Float `json:"pct"`
}

// PriceQuote is the normalized upstream payload for one asset, before it is
// stamped with an observation time.
type PriceQuote struct {
	Price     decimal.Decimal
	ChangePct null.Float
}

// ValidationError represents a quote validation error with specific field context.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// NewQuote builds a validated quote from an upstream price.
func NewQuote(ts time.Time, assetID string, pq PriceQuote) (*Quote, error) {
	if !pq.Price.IsPositive() {
		return nil, &ValidationError{Field: "price", Message: fmt.Sprintf("price must be greater than 0, got %s", pq.Price)}
	}

	price, _ := pq.Price.Float64()
	q := &Quote{
		Timestamp: ts.UTC(),
		AssetID:   assetID,
		Price:     price,
		ChangePct: pq.ChangePct,
	}

	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	return q, nil
}

// Validate checks the quote invariants: a non-zero timestamp, a non-empty asset
// identifier and a finite price greater than zero.
func (q *Quote) Validate() error {
	if q.Timestamp.IsZero() {
		return &ValidationError{Field: "ts", Message: "timestamp cannot be zero"}
	}
	if q.AssetID == "" {
		return &ValidationError{Field: "asset_id", Message: "asset id cannot be empty"}
	}
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return &ValidationError{Field: "price", Message: "price must be finite"}
	}
	if q.Price <= 0 {
		return &ValidationError{Field: "price", Message: "price must be greater than 0"}
	}
	if q.ChangePct.Valid && (math.IsNaN(q.ChangePct.Float64) || math.IsInf(q.ChangePct.Float64, 0)) {
		return &ValidationError{Field: "pct", Message: "change percent must be finite"}
	}
	return nil
}

// Day returns the UTC calendar day the quote belongs to, formatted as a
// partition name.
func (q *Quote) Day() string {
	return q.Timestamp.UTC().Format(PartitionLayout)
}

// String returns a human-readable representation of the quote.
func (q *Quote) String() string {
	pct := "null"
	if q.ChangePct.Valid {
		pct = fmt.Sprintf("%.4f", q.ChangePct.Float64)
	}
	return fmt.Sprintf("Quote{Asset: %s, Timestamp: %s, Price: %.8f, Pct: %s}",
		q.AssetID, q.Timestamp.Format(time.RFC3339), q.Price, pct)
}
