package config

import (
	"strconv"
	"strings"
)

// PerCoreMultiplier scales the CPU count into the default concurrency limit.
const PerCoreMultiplier = 1

// ResolveConcurrencyLimit returns the number of remote calls allowed in flight.
//
// An absent, non-numeric or zero value falls back to cpuCount*PerCoreMultiplier.
// Negative values are clamped to 1. The result is always at least 1.
func ResolveConcurrencyLimit(src Source, cpuCount int) int {
	if cpuCount < 1 {
		cpuCount = 1
	}
	fallback := cpuCount * PerCoreMultiplier

	n, ok := lookupInt(src, KeyConcurrency)
	switch {
	case !ok || n == 0:
		return fallback
	case n < 0:
		return 1
	default:
		return n
	}
}

// ResolveOperationTimeout returns the default per-call timeout in milliseconds.
// ok is false when the key is absent, non-numeric or not positive.
func ResolveOperationTimeout(src Source) (ms int, ok bool) {
	n, found := lookupInt(src, KeyTimeout)
	if !found || n <= 0 {
		return 0, false
	}
	return n, true
}

func lookupInt(src Source, key string) (int, bool) {
	if src == nil {
		return 0, false
	}
	raw, ok := src.Lookup(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
