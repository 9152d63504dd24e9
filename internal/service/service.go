package service

import (
	"math"
	"time"
)

// Clock returns the current local time. Services take one so tests can pin "today".
type Clock func() time.Time

func defaultClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Page selects one page of a listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 20
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// PageInfo describes the page returned alongside a listing.
type PageInfo struct {
	Number int
	Size   int
	Total  int64
}

func (p PageInfo) Pages() int {
	if p.Size == 0 {
		return 1
	}
	pages := int(math.Ceil(float64(p.Total) / float64(p.Size)))
	if pages < 1 {
		return 1
	}
	return pages
}

func (p PageInfo) HasPrev() bool { return p.Number > 1 }
func (p PageInfo) HasNext() bool { return p.Number < p.Pages() }
func (p PageInfo) Prev() int     { return p.Number - 1 }
func (p PageInfo) Next() int     { return p.Number + 1 }
