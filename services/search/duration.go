package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseISODuration parses the ISO 8601 durations the videos endpoint
// returns, such as PT1H2M3S or P1DT4M. Years, months and weeks are
// rejected since no video is that long.
func ParseISODuration(s string) (time.Duration, error) {
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			num += string(r)
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			value, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			num = ""

			var unit time.Duration
			switch {
			case r == 'D' && !inTime:
				unit = 24 * time.Hour
			case r == 'H' && inTime:
				unit = time.Hour
			case r == 'M' && inTime:
				unit = time.Minute
			case r == 'S' && inTime:
				unit = time.Second
			default:
				return 0, fmt.Errorf("unsupported duration unit %q in %q", r, s)
			}
			total += time.Duration(value * float64(unit))
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}
