package normalize

import (
	"strconv"
	"strings"
	"time"
)

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func intVal(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

var timeLayouts = []string{
	"15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// timeOfDay reduces whatever timestamp shape a provider emits to HH:MM local.
// The search request already pinned the date; only the clock matters here.
func timeOfDay(s string) string {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}

// isoDurationMinutes handles the PT2H10M shapes GDS APIs emit.
func isoDurationMinutes(s string) int {
	s = strings.TrimPrefix(s, "PT")
	total := 0
	var num strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			num.WriteRune(r)
			continue
		}
		v, _ := strconv.Atoi(num.String())
		num.Reset()
		switch r {
		case 'H':
			total += v * 60
		case 'M':
			total += v
		}
	}
	return total
}
