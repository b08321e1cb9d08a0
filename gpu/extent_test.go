package gpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFits(t *testing.T) {
	tests := []struct {
		offset, n, size uint64
		want            bool
	}{
		{0, 16, 16, true},
		{4, 12, 16, true},
		{16, 0, 16, true},
		{4, 13, 16, false},
		{17, 0, 16, false},
		{math.MaxUint64 - 1, 4, 16, false},
		{4, math.MaxUint64, 16, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fits(tt.offset, tt.n, tt.size), "%d bytes at %d in %d", tt.n, tt.offset, tt.size)
	}
}

func TestExtentMinAndClamp(t *testing.T) {
	a := Extent{Width: 640, Height: 480}
	b := Extent{Width: 320, Height: 720}
	assert.Equal(t, Extent{Width: 320, Height: 480}, a.Min(b))
	assert.Equal(t, Extent{Width: 400, Height: 480}, a.Clamp(Extent{Width: 1, Height: 1}, Extent{Width: 400, Height: 600}))
	assert.True(t, Extent{Width: 0, Height: 10}.IsZero())
}
