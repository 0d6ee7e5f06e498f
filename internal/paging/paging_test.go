package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlice(t *testing.T) {
	tests := []struct {
		name   string
		pager  Pager
		n      int
		lo, hi int
	}{
		{"first page", Pager{Page: 0, Size: 5}, 12, 0, 5},
		{"last partial page", Pager{Page: 2, Size: 5}, 12, 10, 12},
		{"past the end", Pager{Page: 9, Size: 5}, 12, 12, 12},
		{"all", Pager{Page: 3, Size: All}, 12, 0, 12},
		{"empty", Pager{Size: 10}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := tt.pager.Slice(tt.n)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestAllDisablesNavigation(t *testing.T) {
	p := New(5).SetSize(All)

	assert.True(t, p.IsAll())
	assert.False(t, p.CanPrev())
	assert.False(t, p.CanNext(1000))
	assert.Equal(t, p, p.Next(1000))
	assert.Equal(t, "All 1000", p.Label(1000))
}

func TestNavigation(t *testing.T) {
	p := New(5)
	assert.Equal(t, 1, p.WirePage())
	assert.False(t, p.CanPrev())
	assert.True(t, p.CanNext(12))

	p = p.Next(12).Next(12)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.WirePage())
	assert.False(t, p.CanNext(12))
	assert.Equal(t, p, p.Next(12))

	p = p.Prev()
	assert.Equal(t, 1, p.Page)
}

func TestSetSizeResetsPage(t *testing.T) {
	p := Pager{Page: 3, Size: 5}.SetSize(25)
	assert.Equal(t, Pager{Page: 0, Size: 25}, p)

	assert.Equal(t, DefaultSize, Pager{}.SetSize(0).Size)
}

func TestSetPageClamps(t *testing.T) {
	p := New(5)
	assert.Equal(t, 2, p.SetPage(10, 12).Page)
	assert.Equal(t, 0, p.SetPage(-1, 12).Page)
	assert.Equal(t, 0, p.SetSize(All).SetPage(4, 12).Page)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "1-5 of 12", Pager{Size: 5}.Label(12))
	assert.Equal(t, "11-12 of 12", Pager{Page: 2, Size: 5}.Label(12))
	assert.Equal(t, "0 of 0", Pager{Size: 5}.Label(0))
	assert.Equal(t, "All", SizeLabel(All))
	assert.Equal(t, "25", SizeLabel(25))
}
