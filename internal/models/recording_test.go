package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartTime(t *testing.T) {
	want := time.Date(2025, time.January, 15, 13, 34, 6, 0, time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{name: "rfc3339 with zone", in: "2025-01-15T13:34:06Z"},
		{name: "T separator without zone", in: "2025-01-15T13:34:06"},
		{name: "space separator", in: "2025-01-15 13:34:06"},
		{name: "trailing offset ignored", in: "2025-01-15T13:34:06+02:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStartTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseStartTime_Unparseable(t *testing.T) {
	for _, in := range []string{"", "yesterday", "15/01/2025 13:34:06", "2025-01-15X13:34:06"} {
		_, err := ParseStartTime(in)
		assert.ErrorIs(t, err, ErrUnparseableTime, "input %q", in)
	}
}

func TestRecording_StartDate(t *testing.T) {
	rec := Recording{StartTime: "2025-01-15T13:34:06Z"}
	assert.Equal(t, "2025-01-15", rec.StartDate())

	short := Recording{StartTime: "2025"}
	assert.Equal(t, "2025", short.StartDate())
}
