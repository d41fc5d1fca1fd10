package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatClock formats seconds as HH:MM:SS, truncating fractions
func FormatClock(seconds float64) string {
	h, m, s := clockParts(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatClockFilename formats seconds as HH.MM.SS, safe for file names
func FormatClockFilename(seconds float64) string {
	h, m, s := clockParts(seconds)
	return fmt.Sprintf("%02d.%02d.%02d", h, m, s)
}

// FormatClockEscaped formats seconds as HH\:MM\:SS for ffmpeg filter arguments
func FormatClockEscaped(seconds float64) string {
	h, m, s := clockParts(seconds)
	return fmt.Sprintf(`%02d\:%02d\:%02d`, h, m, s)
}

func clockParts(seconds float64) (int, int, int) {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return total / 3600, (total % 3600) / 60, total % 60
}

// FormatSeconds renders seconds for ffmpeg arguments without trailing zeros
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm or SS.mmm or MM:SS) into seconds
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}

	return total, nil
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30/1")
func ParseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
