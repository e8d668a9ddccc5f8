package handler

import (
	"fmt"
	"strconv"
	"strings"
)

// humanSize renders n bytes with a binary unit, one decimal at most.
func humanSize(n int64) string {
	units := []string{"KiB", "MiB", "GiB"}
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	value := float64(n)
	unit := ""
	for _, u := range units {
		value /= 1024
		unit = u
		if value < 1024 {
			break
		}
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", value), ".0") + " " + unit
}
