// Package paging is the pagination model shared by every table in the
// console, both client-sliced and server-paginated.
package paging

import "fmt"

// All is the page size that shows every row.
const All = -1

// DefaultSize is the page size a table opens with.
const DefaultSize = 10

// Pager tracks a 0-indexed page and a page size.
type Pager struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// New returns a pager on the first page.
func New(size int) Pager {
	if size == 0 {
		size = DefaultSize
	}
	return Pager{Size: size}
}

// IsAll reports whether every row is shown.
func (p Pager) IsAll() bool {
	return p.Size == All
}

// Slice returns the [lo, hi) bounds of the current page within n rows.
func (p Pager) Slice(n int) (lo, hi int) {
	if p.IsAll() || p.Size <= 0 {
		return 0, n
	}
	lo = p.Page * p.Size
	if lo > n {
		lo = n
	}
	hi = lo + p.Size
	if hi > n {
		hi = n
	}
	return lo, hi
}

// WirePage is the 1-indexed page number sent to the backend.
func (p Pager) WirePage() int {
	return p.Page + 1
}

// Pages returns the number of pages for total rows.
func (p Pager) Pages(total int) int {
	if p.IsAll() || p.Size <= 0 || total <= 0 {
		return 1
	}
	return (total + p.Size - 1) / p.Size
}

// CanPrev reports whether a previous page exists.
func (p Pager) CanPrev() bool {
	return !p.IsAll() && p.Page > 0
}

// CanNext reports whether a next page exists for total rows.
func (p Pager) CanNext(total int) bool {
	return !p.IsAll() && p.Page+1 < p.Pages(total)
}

// Prev moves back one page when possible.
func (p Pager) Prev() Pager {
	if p.CanPrev() {
		p.Page--
	}
	return p
}

// Next moves forward one page when possible.
func (p Pager) Next(total int) Pager {
	if p.CanNext(total) {
		p.Page++
	}
	return p
}

// SetSize changes the page size and returns to the first page.
func (p Pager) SetSize(size int) Pager {
	if size == 0 || size < All {
		size = DefaultSize
	}
	return Pager{Size: size}
}

// SetPage jumps to page, clamped to [0, Pages(total)).
func (p Pager) SetPage(page, total int) Pager {
	if p.IsAll() {
		p.Page = 0
		return p
	}
	last := p.Pages(total) - 1
	switch {
	case page < 0:
		page = 0
	case page > last:
		page = last
	}
	p.Page = page
	return p
}

// Label renders the range shown, such as "1-5 of 12" or "All 12".
func (p Pager) Label(total int) string {
	if p.IsAll() {
		return fmt.Sprintf("All %d", total)
	}
	if total == 0 {
		return "0 of 0"
	}
	lo, hi := p.Slice(total)
	return fmt.Sprintf("%d-%d of %d", lo+1, hi, total)
}

// SizeLabel renders a page-size option.
func SizeLabel(size int) string {
	if size == All {
		return "All"
	}
	return fmt.Sprintf("%d", size)
}
