package expr

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// DefaultDatePattern is used by the date filter when no pattern is given.
const DefaultDatePattern = "MM/DD/YYYY hh:mm:ss A"

// Date pattern tokens and their strftime equivalents, longest first.
var dateTokens = []struct {
	token string
	spec  string
}{
	{"YYYY", "%Y"},
	{"MM", "%m"},
	{"DD", "%d"},
	{"hh", "%I"},
	{"HH", "%H"},
	{"mm", "%M"},
	{"ss", "%S"},
	{"A", "%p"},
}

// Layouts tried in order when parsing date strings.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

// ParseTime interprets v as a point in time. Strings are tried against a
// fixed set of layouts; numbers are epoch milliseconds. Values without a
// zone are taken as UTC.
func ParseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case json.Number:
		if ms, err := val.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(f)
	case int:
		return time.UnixMilli(int64(val)).UTC(), true
	case int64:
		return time.UnixMilli(val).UTC(), true
	case float64:
		return fromMillis(val)
	default:
		return time.Time{}, false
	}
}

func fromMillis(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

// FormatTime renders t with a token pattern (YYYY MM DD hh HH mm ss A).
// Text that is not a token is copied as is.
func FormatTime(t time.Time, pattern string) string {
	return strftime.Format(toStrftime(pattern), t)
}

func toStrftime(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) * 2)
next:
	for i := 0; i < len(pattern); {
		for _, tok := range dateTokens {
			if strings.HasPrefix(pattern[i:], tok.token) {
				b.WriteString(tok.spec)
				i += len(tok.token)
				continue next
			}
		}
		if pattern[i] == '%' {
			b.WriteString("%%")
		} else {
			b.WriteByte(pattern[i])
		}
		i++
	}
	return b.String()
}

// formatDate is the date filter: parseable input is rendered with the
// pattern, anything else is returned unchanged.
func formatDate(input any, pattern string) any {
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	t, ok := ParseTime(input)
	if !ok {
		return input
	}
	return FormatTime(t, pattern)
}
