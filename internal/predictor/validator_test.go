package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/predictops/autoscaler/pkg/models"
)

func TestValidateForecast(t *testing.T) {
	thresholds := models.ValidationThresholds{
		MaxSpikeMultiplier:      3.0,
		MaxHistoricalMultiplier: 5.0,
	}

	tests := []struct {
		name      string
		forecast  float64
		history   models.HistoryWindow
		expectErr bool
	}{
		{
			name:     "forecast within bounds",
			forecast: 150,
			history:  models.HistoryWindow{90, 100, 110, 100},
		},
		{
			name:      "negative forecast rejected",
			forecast:  -1,
			history:   models.HistoryWindow{90, 100, 110, 100},
			expectErr: true,
		},
		{
			name:      "spike over current load rejected",
			forecast:  301,
			history:   models.HistoryWindow{500, 500, 100},
			expectErr: true,
		},
		{
			name:     "spike bound is against last sample not peak",
			forecast: 290,
			history:  models.HistoryWindow{500, 500, 100},
		},
		{
			name:      "forecast over historical average rejected",
			forecast:  90,
			history:   models.HistoryWindow{10, 10, 10, 40},
			expectErr: true,
		},
		{
			name:     "empty history accepts any non-negative forecast",
			forecast: 1e9,
			history:  nil,
		},
		{
			name:     "zero current load skips spike check",
			forecast: 3,
			history:  models.HistoryWindow{1, 1, 0},
		},
		{
			name:     "all-zero history accepts forecast",
			forecast: 100,
			history:  models.HistoryWindow{0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateForecast(tt.forecast, tt.history, thresholds)

			if tt.expectErr {
				assert.ErrorIs(t, err, ErrForecastRejected)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFitWindow(t *testing.T) {
	tests := []struct {
		name     string
		window   models.HistoryWindow
		length   int
		expected models.HistoryWindow
	}{
		{
			name:     "exact length unchanged",
			window:   models.HistoryWindow{1, 2, 3},
			length:   3,
			expected: models.HistoryWindow{1, 2, 3},
		},
		{
			name:     "longer window keeps most recent samples",
			window:   models.HistoryWindow{1, 2, 3, 4, 5},
			length:   3,
			expected: models.HistoryWindow{3, 4, 5},
		},
		{
			name:     "shorter window padded with last value",
			window:   models.HistoryWindow{1, 2},
			length:   5,
			expected: models.HistoryWindow{1, 2, 2, 2, 2},
		},
		{
			name:     "empty window padded with zeros",
			window:   nil,
			length:   3,
			expected: models.HistoryWindow{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FitWindow(tt.window, tt.length))
		})
	}
}
