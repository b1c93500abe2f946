package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"2m"`, want: 2 * time.Minute},
		{name: "nanoseconds", in: `1000000000`, want: time.Second},
		{name: "bad string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}

func TestWireFormat_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 45, 123456789, time.FixedZone("x", 3600))

	s := FormatWire(ts)
	assert.Equal(t, "2026-03-01T11:30:45.123456Z", s)

	back, err := ParseWire(s)
	require.NoError(t, err)
	assert.True(t, back.Equal(ts.Truncate(time.Microsecond)))
}

func TestParseWire_AcceptsMillis(t *testing.T) {
	got, err := ParseWire("2026-03-01T11:30:45.123Z")
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(got.Nanosecond()))

	_, err = ParseWire("yesterday")
	assert.Error(t, err)
}
