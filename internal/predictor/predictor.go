package predictor

import (
	"context"
	"errors"

	"github.com/predictops/autoscaler/pkg/models"
)

var (
	ErrPredictionFailed = errors.New("prediction failed")
	ErrModelUnavailable = errors.New("model server unavailable")

	// ErrAmbiguousSignature means the model exposes more than one input or
	// output slot and the adapter refuses to guess which to use.
	ErrAmbiguousSignature = errors.New("model signature is ambiguous")
)

// Predictor maps a fixed-length history window to a scalar forecast in
// native workload units. Implementations own any normalization required by
// the underlying model.
type Predictor interface {
	Predict(ctx context.Context, window models.HistoryWindow) (float64, error)

	// WindowLength reports the input length the model expects.
	WindowLength() int

	Close() error
}

// FitWindow adjusts a window to exactly length samples: shorter windows are
// padded by repeating the last known value (0 if empty), longer windows keep
// only the most recent samples.
func FitWindow(window models.HistoryWindow, length int) models.HistoryWindow {
	if len(window) == length {
		return window
	}

	if len(window) > length {
		fitted := make(models.HistoryWindow, length)
		copy(fitted, window[len(window)-length:])
		return fitted
	}

	fitted := make(models.HistoryWindow, length)
	copy(fitted, window)

	pad := 0.0
	if len(window) > 0 {
		pad = window[len(window)-1]
	}
	for i := len(window); i < length; i++ {
		fitted[i] = pad
	}

	return fitted
}
