package utils

import (
	"sort"
	"strconv"
)

type KeyCount struct {
	Key   string
	Count uint64
}

// SortByCount sorts keys by count (descending), then by key (ascending)
func SortByCount(counts map[string]uint64) []KeyCount {
	out := make([]KeyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, KeyCount{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Key < out[j].Key
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// FormatNumber formats a number with comma separators for readability
func FormatNumber(n uint64) string {
	str := strconv.FormatUint(n, 10)
	if len(str) <= 3 {
		return str
	}

	result := make([]byte, 0, len(str)+len(str)/3)
	for i := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, str[i])
	}
	return string(result)
}

// FormatRate prints an events-per-minute value the way it is computed: one decimal
// below 1, whole numbers otherwise.
func FormatRate(r float64) string {
	if r < 1 {
		return strconv.FormatFloat(r, 'f', 1, 64)
	}
	return FormatNumber(uint64(r))
}
