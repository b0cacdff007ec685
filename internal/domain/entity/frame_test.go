package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameTimeKeyPadding(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00000"},
		{9, "00009"},
		{10, "00010"},
		{1234, "01234"},
		{99999, "99999"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameTimeKey(tt.seconds))
	}
}

func TestFrameTimeKeyPreservesChronologicalOrder(t *testing.T) {
	// Lexicographic order of the padded keys must match numeric order for
	// any pair of sampled times.
	times := []int{0, 1, 9, 10, 59, 99, 100, 999, 3600, 86399, 99999}
	for i := 0; i < len(times); i++ {
		for j := i + 1; j < len(times); j++ {
			k1, k2 := FrameTimeKey(times[i]), FrameTimeKey(times[j])
			assert.Less(t, k1, k2, "key for %d should sort before key for %d", times[i], times[j])
		}
	}
}
