package users

import (
	"fmt"
	"time"
)

// IsWithinThresholdPeriod checks if the given time is still inside the
// threshold window, e.g. "1h" or "2h30m".
func IsWithinThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	threshold, err := time.ParseDuration(thresholdExpr)
	if err != nil {
		return false, fmt.Errorf("invalid threshold expression %q: %w", thresholdExpr, err)
	}

	cutoff := time.Now().Add(-threshold)
	return t.After(cutoff), nil
}

// IsOutsideThresholdPeriod checks if the given time has aged past the
// threshold window.
func IsOutsideThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, thresholdExpr)
	if err != nil {
		return false, err
	}
	return !within, nil
}
