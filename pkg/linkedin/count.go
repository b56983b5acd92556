package linkedin

import (
	"strconv"
	"strings"
)

// ParseCount interprets the textual counters the platform renders next to
// reactions, comments and shares. A K/M/B directly after the leading
// numeric portion multiplies it by 10^3/10^6/10^9; anything further out,
// like the word "comments", is label text and never a multiplier.
// Unparsable text yields zero, never an error; a wrong count is
// recoverable, a crashed run is not.
func ParseCount(text string) int {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}

	// Collect the leading number and remember where it ends. Counters
	// arrive as "1,234", "1.2K reactions", "3M" and similar.
	var b strings.Builder
	rest := ""
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
			continue
		}
		if r == ',' {
			continue
		}
		if b.Len() > 0 {
			rest = s[i:]
			break
		}
	}

	num, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}

	multiplier := 1.0
	if rest != "" {
		switch rest[0] {
		case 'K', 'k':
			multiplier = 1e3
		case 'M', 'm':
			multiplier = 1e6
		case 'B', 'b':
			multiplier = 1e9
		}
	}

	return int(num * multiplier)
}
