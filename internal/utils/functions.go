package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a bytes-per-second rate.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	formatted := FormatBytes(uint64(bytesPerSec))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}

func FormatETA(eta time.Duration, known bool) string {
	if !known {
		return "calculating..."
	}
	etaSeconds := int64(eta.Seconds())
	if etaSeconds < 60 {
		return fmt.Sprintf("%ds", etaSeconds)
	} else if etaSeconds < 3600 {
		return fmt.Sprintf("%dm %ds", etaSeconds/60, etaSeconds%60)
	}
	return fmt.Sprintf("%dh %dm", etaSeconds/3600, (etaSeconds%3600)/60)
}

// ParseBytes parses sizes like "2MB", "512 KB" or "1048576" into bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	multiplier := int64(1)
	units := []struct {
		suffix string
		mult   int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative byte size %q", s)
	}
	return int64(value * float64(multiplier)), nil
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}
