package predictor

// MinMaxScaler rescales a sample window into a fixed feature range and maps
// model output back to native units. It is fit from scratch on every window;
// no normalization state survives across calls.
type MinMaxScaler struct {
	rangeMin float64
	rangeMax float64

	dataMin   float64
	dataScale float64
	fitted    bool
}

func NewMinMaxScaler(rangeMin, rangeMax float64) *MinMaxScaler {
	return &MinMaxScaler{
		rangeMin: rangeMin,
		rangeMax: rangeMax,
	}
}

// FitTransform fits the scaler to values and returns them rescaled into
// [rangeMin, rangeMax]. A degenerate window (all values equal) maps every
// value to rangeMin and inverts back to the original value.
func (s *MinMaxScaler) FitTransform(values []float64) []float64 {
	if len(values) == 0 {
		s.dataMin = 0
		s.dataScale = 1
		s.fitted = true
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	s.dataMin = min
	s.dataScale = max - min
	if s.dataScale == 0 {
		s.dataScale = 1
	}
	s.fitted = true

	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = (v-s.dataMin)/s.dataScale*(s.rangeMax-s.rangeMin) + s.rangeMin
	}
	return scaled
}

// Inverse maps a value from the feature range back to native units.
// Must only be called after FitTransform.
func (s *MinMaxScaler) Inverse(value float64) float64 {
	if !s.fitted {
		return value
	}
	return (value-s.rangeMin)/(s.rangeMax-s.rangeMin)*s.dataScale + s.dataMin
}
