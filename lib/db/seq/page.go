package seq

import (
	"math"

	"github.com/ValentinKolb/objkv/lib/db"
)

// Page is the state of one paged walk: it skips Skip entries with one bulk
// Advance, then emits up to Take records and stops without moving the cursor
// past the last one. Take <= 0 emits everything after the skip.
//
// The skip runs at most once per Page, a Page is therefore only good for a
// single walk.
type Page struct {
	Skip int
	Take int

	skipped bool
	taken   int
}

// NewPage returns the state for the 1-based page of the given size.
// Pages <= 1 skip nothing, a skip that does not fit into an int is clamped
// to math.MaxInt.
func NewPage(page, pageSize int) *Page {
	skip := 0
	if page > 1 && pageSize > 0 {
		if page-1 > math.MaxInt/pageSize {
			skip = math.MaxInt
		} else {
			skip = (page - 1) * pageSize
		}
	}
	return &Page{Skip: skip, Take: pageSize}
}

// Taken returns the number of records emitted so far.
func (p *Page) Taken() int {
	return p.taken
}

func (p *Page) Step(c db.Cursor) (bool, Move, error) {
	if !p.skipped {
		p.skipped = true
		if p.Skip > 0 {
			return false, Stay, c.Advance(p.Skip)
		}
	}
	if p.Take > 0 && p.taken >= p.Take {
		return false, Stop, nil
	}
	p.taken++
	if p.Take > 0 && p.taken >= p.Take {
		return true, Stop, nil
	}
	return true, Continue, nil
}
