package seq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCursor walks a slice and counts how it is moved
type fakeCursor struct {
	records   []db.Record
	pos       int
	broken    map[int]bool // positions whose Value fails
	continues int
	advances  []int
}

func newFakeCursor(n int) *fakeCursor {
	c := &fakeCursor{broken: map[int]bool{}}
	for i := 0; i < n; i++ {
		c.records = append(c.records, db.Record{"id": float64(i)})
	}
	return c
}

func (c *fakeCursor) Valid() bool        { return c.pos < len(c.records) }
func (c *fakeCursor) Key() db.Key        { return db.MustEncodeKey(c.pos) }
func (c *fakeCursor) PrimaryKey() db.Key { return db.MustEncodeKey(c.pos) }
func (c *fakeCursor) Delete() error      { return nil }

func (c *fakeCursor) Value() (db.Record, error) {
	if c.broken[c.pos] {
		return nil, fmt.Errorf("broken record %d", c.pos)
	}
	return c.records[c.pos], nil
}

func (c *fakeCursor) Continue() error {
	c.continues++
	c.pos++
	return nil
}

func (c *fakeCursor) Advance(n int) error {
	c.advances = append(c.advances, n)
	c.pos += min(n, len(c.records)-c.pos)
	return nil
}

func ids(t *testing.T, records []db.Record) []float64 {
	t.Helper()
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r["id"].(float64))
	}
	return out
}

// TestAll tests that All yields every record in cursor order
func TestAll(t *testing.T) {
	c := newFakeCursor(5)
	records, itemErrs, err := Collect(All(context.Background(), c))
	require.NoError(t, err)
	assert.Empty(t, itemErrs)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, ids(t, records))
	assert.Equal(t, 5, c.continues, "All should continue after every record")
}

// TestAllEmpty tests a walk over an exhausted cursor
func TestAllEmpty(t *testing.T) {
	records, itemErrs, err := Collect(All(context.Background(), newFakeCursor(0)))
	assert.NoError(t, err)
	assert.Empty(t, itemErrs)
	assert.Empty(t, records)
}

// TestSkipTake tests paging with a single bulk skip
func TestSkipTake(t *testing.T) {
	c := newFakeCursor(10)
	records, _, err := Collect(SkipTake(context.Background(), c, 4, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, ids(t, records))
	assert.Equal(t, []int{4}, c.advances, "skip should be a single Advance")
	assert.Equal(t, 2, c.continues, "cursor should not move past the last record of the page")
}

// TestPagesCoverAll tests that consecutive pages have no gap or overlap
func TestPagesCoverAll(t *testing.T) {
	const total, pageSize = 23, 5
	var seen []float64
	for page := 1; ; page++ {
		c := newFakeCursor(total)
		p := NewPage(page, pageSize)
		records, _, err := Collect(Walk(context.Background(), c, p))
		require.NoError(t, err)
		if len(records) == 0 {
			break
		}
		assert.Equal(t, len(records), p.Taken())
		if page <= total/pageSize {
			assert.Len(t, records, pageSize)
		} else {
			assert.Len(t, records, total%pageSize, "last page holds the remainder")
		}
		seen = append(seen, ids(t, records)...)
	}

	want := make([]float64, total)
	for i := range want {
		want[i] = float64(i)
	}
	assert.Equal(t, want, seen)
}

// TestPageFirstNoSkip tests that page 1 and lower never advance
func TestPageFirstNoSkip(t *testing.T) {
	for _, page := range []int{-1, 0, 1} {
		c := newFakeCursor(3)
		records, _, err := Collect(Walk(context.Background(), c, NewPage(page, 2)))
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1}, ids(t, records))
		assert.Empty(t, c.advances)
	}
}

// TestPageBeyondEnd tests a skip past the end of the cursor
func TestPageBeyondEnd(t *testing.T) {
	c := newFakeCursor(3)
	records, _, err := Collect(Walk(context.Background(), c, NewPage(5, 2)))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, []int{8}, c.advances)
}

// TestPageSkipOverflow tests that a skip beyond math.MaxInt is clamped and
// yields an empty page
func TestPageSkipOverflow(t *testing.T) {
	p := NewPage(math.MaxInt/2+2, 2)
	assert.Equal(t, math.MaxInt, p.Skip)

	c := newFakeCursor(3)
	records, _, err := Collect(Walk(context.Background(), c, p))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, []int{math.MaxInt}, c.advances)

	assert.Equal(t, 0, NewPage(3, 0).Skip, "no skip without a page size")
}

// TestTakeWhile tests that TakeWhile stops at the first failing record
func TestTakeWhile(t *testing.T) {
	c := newFakeCursor(10)
	s := TakeWhile(All(context.Background(), c), func(r db.Record) bool {
		return r["id"].(float64) < 3
	})
	records, _, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, ids(t, records))
	assert.Equal(t, 3, c.continues, "cursor stays on the first failing record")
}

// TestTake tests that Take stops right after the n-th record
func TestTake(t *testing.T) {
	c := newFakeCursor(10)
	records, _, err := Collect(Take(All(context.Background(), c), 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, ids(t, records))
	assert.Equal(t, 1, c.continues)

	records, _, _ = Collect(Take(All(context.Background(), newFakeCursor(3)), 0))
	assert.Empty(t, records)
}

// TestItemErrors tests that broken records are reported and skipped
func TestItemErrors(t *testing.T) {
	c := newFakeCursor(4)
	c.broken[1] = true

	records, itemErrs, err := Collect(All(context.Background(), c))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 3}, ids(t, records))
	require.Len(t, itemErrs, 1)

	var ie *ItemError
	require.True(t, errors.As(itemErrs[0], &ie))
	assert.Equal(t, db.MustEncodeKey(1), ie.PrimaryKey)
}

// TestCanceled tests that a canceled context ends the walk with an error
func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newFakeCursor(10)

	n := 0
	var walkErr error
	for r, err := range All(ctx, c) {
		if err != nil {
			walkErr = err
			break
		}
		n++
		if r["id"].(float64) == 1 {
			cancel()
		}
	}
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, walkErr, context.Canceled)
}

// TestRestartByRecreating tests that a sequence is bound to its cursor
func TestRestartByRecreating(t *testing.T) {
	c := newFakeCursor(3)
	s := All(context.Background(), c)
	first, _, _ := Collect(s)
	again, _, _ := Collect(s)
	assert.Len(t, first, 3)
	assert.Empty(t, again, "an exhausted sequence stays exhausted")

	fresh, _, _ := Collect(All(context.Background(), newFakeCursor(3)))
	assert.Len(t, fresh, 3)
}
