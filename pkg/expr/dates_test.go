package expr

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name   string
		input  any
		want   time.Time
		wantOK bool
	}{
		{name: "rfc3339", input: "2024-03-05T14:07:09Z", want: want, wantOK: true},
		{name: "rfc3339 nano", input: "2024-03-05T14:07:09.000Z", want: want, wantOK: true},
		{name: "iso without zone", input: "2024-03-05T14:07:09", want: want, wantOK: true},
		{name: "space separated", input: "2024-03-05 14:07:09", want: want, wantOK: true},
		{name: "date only", input: "2024-03-05", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "us date", input: "03/05/2024", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "rfc1123", input: "Tue, 05 Mar 2024 14:07:09 UTC", want: want, wantOK: true},
		{name: "time value", input: want, want: want, wantOK: true},
		{name: "epoch millis", input: int64(want.UnixMilli()), want: want, wantOK: true},
		{name: "epoch millis float", input: float64(want.UnixMilli()), want: want, wantOK: true},
		{name: "json number", input: json.Number("1709647629000"), want: want, wantOK: true},
		{name: "padded", input: "  2024-03-05T14:07:09Z ", want: want, wantOK: true},
		{name: "empty", input: ""},
		{name: "garbage", input: "yesterday"},
		{name: "bool", input: true},
		{name: "zero time", input: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 5, 0, 7, 9, 0, time.UTC)

	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: DefaultDatePattern, want: "03/05/2024 12:07:09 AM"},
		{pattern: "YYYY-MM-DD", want: "2024-03-05"},
		{pattern: "HH:mm", want: "00:07"},
		{pattern: "hh A", want: "12 AM"},
		{pattern: "DD/MM", want: "05/03"},
		{pattern: "100%", want: "100%"},
		{pattern: "at ss", want: "at 09"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(ts, tt.pattern))
		})
	}
}
