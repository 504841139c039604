package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-01T10:00:00Z", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-03-01T10:00:00.5+05:00", time.Date(2025, 3, 1, 5, 0, 0, 500000000, time.UTC)},
		{"2025-03-01T10:00:00.123456", time.Date(2025, 3, 1, 10, 0, 0, 123456000, time.UTC)},
		{"2025-03-01 10:00:00", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{" 2025-03-01 10:00:00.5+00:00 ", time.Date(2025, 3, 1, 10, 0, 0, 500000000, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
	}

	for _, bad := range []string{"", "yesterday", "03/01/2025"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}
