package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchQuery_Clamped(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero becomes default", 0, DefaultPageSize},
		{"negative becomes default", -3, DefaultPageSize},
		{"within bounds unchanged", 50, 50},
		{"maximum unchanged", 1000, 1000},
		{"oversized clamped", 5000, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchQuery{PageSize: tt.in}.Clamped().PageSize)
		})
	}
}

func TestNewSearchCursor_PageCount(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		size  int
		want  int
	}{
		{"empty result still one page", 0, 10, 1},
		{"exact fit", 100, 10, 10},
		{"remainder rounds up", 101, 10, 11},
		{"single item", 1, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSearchCursor(SearchQuery{PageSize: tt.size}, tt.total)
			assert.Equal(t, tt.want, c.PageCount)
			assert.Equal(t, 1, c.PageIndex)
		})
	}
}

func TestSearchCursor_AdvanceClampsAtBounds(t *testing.T) {
	c := NewSearchCursor(SearchQuery{PageSize: 10}, 30) // 3 pages

	for i := 0; i < 3; i++ {
		c.Advance(1)
	}
	assert.Equal(t, 3, c.PageIndex, "N advances from page 1 end on page N")
	c.Advance(1)
	assert.Equal(t, 3, c.PageIndex, "advancing past the end is a no-op")

	for i := 0; i < 3; i++ {
		c.Advance(-1)
	}
	assert.Equal(t, 1, c.PageIndex)
	c.Advance(-1)
	assert.Equal(t, 1, c.PageIndex, "retreating past the start is a no-op")
}

func TestSearchCursor_Offset(t *testing.T) {
	c := NewSearchCursor(SearchQuery{PageSize: 25}, 100)
	assert.Equal(t, 0, c.Offset())
	c.Advance(2)
	assert.Equal(t, 50, c.Offset())
}
