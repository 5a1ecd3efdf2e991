// Package exchange defines the upstream price source used by the ingestion
// pipeline and its CoinGecko implementation.
package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// PriceFetcher retrieves the latest price for a set of assets in one call.
type PriceFetcher interface {
	// FetchPrices returns one PriceQuote per asset present in the upstream
	// payload. Assets missing from the payload are skipped with a warning; if
	// every requested asset is missing a *errors.ResponseShapeError is returned.
	// Transport failures are retried with linear backoff and surface as
	// *errors.UpstreamError after the final attempt.
	FetchPrices(ctx context.Context, assetIDs []string) (map[string]models.PriceQuote, error)
}

// HealthChecker verifies that the upstream API is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// normalizeAssetIDs lower-cases, trims and de-duplicates asset identifiers while
// keeping their order.
func normalizeAssetIDs(assetIDs []string) ([]string, error) {
	out := make([]string, 0, len(assetIDs))
	seen := make(map[string]bool, len(assetIDs))
	for _, id := range assetIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		if strings.ContainsAny(id, ",/?&= ") {
			return nil, &ValidationError{Field: "asset_id", Message: fmt.Sprintf("invalid asset identifier %q", id)}
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, &ValidationError{Field: "asset_ids", Message: "at least one asset identifier is required"}
	}
	return out, nil
}
