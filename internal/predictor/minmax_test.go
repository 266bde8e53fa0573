package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxScaler_FitTransform(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected []float64
	}{
		{
			name:     "linear window spans full range",
			values:   []float64{0, 50, 100},
			expected: []float64{-1, 0, 1},
		},
		{
			name:     "constant window maps to range min",
			values:   []float64{42, 42, 42},
			expected: []float64{-1, -1, -1},
		},
		{
			name:     "single value maps to range min",
			values:   []float64{7},
			expected: []float64{-1},
		},
		{
			name:     "empty window returns nil",
			values:   nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scaler := NewMinMaxScaler(-1, 1)
			scaled := scaler.FitTransform(tt.values)

			assert.Len(t, scaled, len(tt.expected))
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], scaled[i], 1e-9)
			}
		})
	}
}

func TestMinMaxScaler_Inverse(t *testing.T) {
	scaler := NewMinMaxScaler(-1, 1)
	values := []float64{10, 55, 100, 70, 30}
	scaled := scaler.FitTransform(values)

	for i, v := range values {
		assert.InDelta(t, v, scaler.Inverse(scaled[i]), 1e-9)
	}

	// Model output between known points inverts proportionally.
	assert.InDelta(t, 55.0, scaler.Inverse(0), 1e-9)
}

func TestMinMaxScaler_InverseDegenerateWindow(t *testing.T) {
	scaler := NewMinMaxScaler(-1, 1)
	scaled := scaler.FitTransform([]float64{42, 42, 42})

	assert.InDelta(t, 42.0, scaler.Inverse(scaled[0]), 1e-9)
}

func TestMinMaxScaler_InverseBeforeFit(t *testing.T) {
	scaler := NewMinMaxScaler(-1, 1)
	assert.Equal(t, 0.5, scaler.Inverse(0.5))
}
