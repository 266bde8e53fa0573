package predictor

import (
	"errors"
	"fmt"

	"github.com/predictops/autoscaler/pkg/models"
)

// ErrForecastRejected marks forecasts that failed the sanity bounds.
var ErrForecastRejected = errors.New("forecast rejected")

// ValidateForecast checks a forecast against the target's sanity bounds
// before it may influence scaling. A nil return means the forecast is usable.
// An empty history accepts everything: there is nothing to compare against.
func ValidateForecast(forecast float64, history models.HistoryWindow, thresholds models.ValidationThresholds) error {
	if forecast < 0 {
		return fmt.Errorf("%w: negative forecast %.2f", ErrForecastRejected, forecast)
	}

	if len(history) == 0 {
		return nil
	}

	current := history.Last()
	if current > 0 && forecast > current*thresholds.MaxSpikeMultiplier {
		return fmt.Errorf("%w: forecast %.2f exceeds %.1fx current load %.2f",
			ErrForecastRejected, forecast, thresholds.MaxSpikeMultiplier, current)
	}

	avg := history.Mean()
	if avg > 0 && forecast > avg*thresholds.MaxHistoricalMultiplier {
		return fmt.Errorf("%w: forecast %.2f exceeds %.1fx historical average %.2f",
			ErrForecastRejected, forecast, thresholds.MaxHistoricalMultiplier, avg)
	}

	return nil
}
