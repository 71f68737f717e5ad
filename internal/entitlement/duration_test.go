package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", token: "45s", want: 45 * time.Second},
		{name: "minutes", token: "10m", want: 600 * time.Second},
		{name: "hours", token: "2h", want: 7200 * time.Second},
		{name: "thirty days", token: "30d", want: 2592000 * time.Second},
		{name: "one month", token: "1mo", want: 2592000 * time.Second},
		{name: "one year", token: "1yr", want: 31536000 * time.Second},
		{name: "multi digit", token: "365d", want: 31536000 * time.Second},
		{name: "zero magnitude", token: "0d", wantErr: true},
		{name: "no unit", token: "30", wantErr: true},
		{name: "no magnitude", token: "d", wantErr: true},
		{name: "unknown unit", token: "3w", wantErr: true},
		{name: "letters", token: "abc", wantErr: true},
		{name: "negative", token: "-1d", wantErr: true},
		{name: "fractional", token: "1.5d", wantErr: true},
		{name: "trailing garbage", token: "30dd", wantErr: true},
		{name: "leading space", token: " 30d", wantErr: true},
		{name: "uppercase unit", token: "30D", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationOverflow(t *testing.T) {
	// Digits beyond int64.
	_, err := ParseDuration("99999999999999999999d")
	assert.ErrorIs(t, err, ErrInvalidDuration)

	// Parses as int64 but the span exceeds time.Duration's ~292 year range.
	_, err = ParseDuration("300yr")
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = ParseDuration("107000000000d")
	assert.ErrorIs(t, err, ErrInvalidDuration)

	// The largest accepted year count still yields a positive span.
	d, err := ParseDuration("292yr")
	require.NoError(t, err)
	assert.Positive(t, d)
	assert.Equal(t, time.Duration(292*365*86400)*time.Second, d)
}
