package stats

import "fmt"

// Formatting helpers for the UI layer. Pure and stateless; thresholds are
// fixed for display parity.

func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0fm", meters)
	}
	return fmt.Sprintf("%.2fkm", meters/1000)
}

func FormatArea(squareMeters float64) string {
	if squareMeters < 10000 {
		return fmt.Sprintf("%.0fm²", squareMeters)
	}
	return fmt.Sprintf("%.2fkm²", squareMeters/1e6)
}

func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatTimer renders elapsed milliseconds as HH:MM:SS.
func FormatTimer(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", totalSeconds/3600, (totalSeconds%3600)/60, totalSeconds%60)
}
