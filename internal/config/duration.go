package config

import (
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

// maxDays keeps whole-day durations inside time.Duration.
const maxDays = int(math.MaxInt64 / int64(24*time.Hour))

// ParseDuration accepts Go duration strings ("15m", "10s", "1h30m") and a whole-day
// form ("7d"). The result must be positive.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)

	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, apperrors.Wrapf(apperrors.ErrInvalidConfig, "invalid duration %q", value)
		}
		if n > maxDays {
			return 0, apperrors.Wrapf(apperrors.ErrInvalidConfig, "duration %q exceeds %d days", value, maxDays)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidConfig, "invalid duration %q", value)
	}
	if d <= 0 {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidConfig, "duration %q must be positive", value)
	}
	return d, nil
}
