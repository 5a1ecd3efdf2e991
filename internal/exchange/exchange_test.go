package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ PriceFetcher  = (*CoinGeckoClient)(nil)
	_ HealthChecker = (*CoinGeckoClient)(nil)
)

func TestNormalizeAssetIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr bool
	}{
		{
			name:  "lower-cases and trims",
			input: []string{" Bitcoin ", "ETHEREUM"},
			want:  []string{"bitcoin", "ethereum"},
		},
		{
			name:  "drops duplicates and blanks keeping order",
			input: []string{"solana", "", "bitcoin", "Solana"},
			want:  []string{"solana", "bitcoin"},
		},
		{
			name:    "rejects query characters",
			input:   []string{"bitcoin&vs=eur"},
			wantErr: true,
		},
		{
			name:    "rejects empty list",
			input:   []string{" ", ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeAssetIDs(tt.input)
			if tt.wantErr {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
