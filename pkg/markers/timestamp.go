package markers

import (
	"fmt"
	"strconv"
	"strings"
)

// TotalSeconds decomposes a colon-separated timestamp (MM:SS or HH:MM:SS)
// into total seconds. It rejects anything that is not a syntactically valid
// time: wrong component count, non-digit characters, or a non-leading
// component that is not exactly two digits below 60.
func TotalSeconds(timestamp string) (int, error) {
	parts := strings.Split(strings.TrimSpace(timestamp), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q must have 2 or 3 components", timestamp)
	}

	total := 0
	for i, part := range parts {
		if part == "" || !isDigits(part) {
			return 0, fmt.Errorf("timestamp %q has non-numeric component %q", timestamp, part)
		}
		if i > 0 {
			if len(part) != 2 {
				return 0, fmt.Errorf("timestamp %q component %q must be two digits", timestamp, part)
			}
			value, _ := strconv.Atoi(part)
			if value > 59 {
				return 0, fmt.Errorf("timestamp %q component %q out of range", timestamp, part)
			}
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q has invalid component %q", timestamp, part)
		}
		total = total*60 + value
	}

	return total, nil
}

// Normalize returns the canonical form of a timestamp: two digits per
// component, hour component omitted when zero. Normalizing an
// already-normalized timestamp returns it unchanged.
func Normalize(timestamp string) (string, error) {
	total, err := TotalSeconds(timestamp)
	if err != nil {
		return "", err
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds), nil
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds), nil
}

// AppendTimestamp builds a timestamped video URL by adding a t=<seconds>
// query parameter, with & when the base URL already has a query string.
func AppendTimestamp(baseURL string, totalSeconds int) string {
	separator := "?"
	if strings.Contains(baseURL, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%st=%d", baseURL, separator, totalSeconds)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
