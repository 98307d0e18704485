package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	tests := []struct {
		name    string
		tz      string
		want    string
		wantErr bool
	}{
		{name: "UTC", tz: "UTC", want: "UTC"},
		{name: "empty string uses fallback", tz: "", want: "Asia/Tokyo"},
		{name: "America/New_York", tz: "America/New_York", want: "America/New_York"},
		{name: "invalid timezone", tz: "Invalid/Timezone", want: "Asia/Tokyo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseTimezone(tt.tz, tokyo)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, loc)
			assert.Equal(t, tt.want, loc.String())
		})
	}
}

func TestIsValidTimezone(t *testing.T) {
	assert.True(t, IsValidTimezone(""))
	assert.True(t, IsValidTimezone("Europe/Paris"))
	assert.False(t, IsValidTimezone("Mars/Olympus"))
}

func TestReferenceTime(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2024-03-15 20:00 UTC is already Saturday in Tokyo
	ref, err := ReferenceTime("2024-03-15T20:00:00Z", tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, ref.Weekday())
	assert.Equal(t, tokyo, ref.Location())

	now, err := ReferenceTime("", tokyo)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, time.Minute)

	_, err = ReferenceTime("next friday", tokyo)
	assert.Error(t, err)
}
