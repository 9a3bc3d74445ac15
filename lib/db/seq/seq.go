package seq

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/ValentinKolb/objkv/lib/db"
)

// Move tells Walk what to do with the cursor after a step.
type Move uint8

const (
	Stop     Move = iota // finish without touching the cursor again
	Continue             // move to the next entry before the next step
	Stay                 // the step already repositioned the cursor
)

// Stepper decides at every cursor position whether the current record is
// emitted and how the cursor moves on. A Stepper holds the state of exactly
// one walk and must not be reused.
type Stepper interface {
	Step(c db.Cursor) (emit bool, move Move, err error)
}

// StepFunc adapts a stateless function to Stepper.
type StepFunc func(c db.Cursor) (emit bool, move Move, err error)

func (f StepFunc) Step(c db.Cursor) (bool, Move, error) {
	return f(c)
}

// ItemError reports a single record that could not be loaded. Walks go on
// after an ItemError, every other error ends them.
type ItemError struct {
	PrimaryKey db.Key
	Err        error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("record %s: %v", e.PrimaryKey, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Walk returns the lazy sequence of records produced by driving c with st.
// Nothing happens until the sequence is ranged over, and the sequence is
// bound to c: to start over, open a new cursor and call Walk again.
//
// The cursor is checked for validity before every step. When the consumer
// stops early, the cursor is left where it is.
func Walk(ctx context.Context, c db.Cursor, st Stepper) iter.Seq2[db.Record, error] {
	return func(yield func(db.Record, error) bool) {
		for c.Valid() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			emit, move, err := st.Step(c)
			if err != nil {
				yield(nil, err)
				return
			}
			if emit {
				record, err := c.Value()
				if err != nil {
					err = &ItemError{PrimaryKey: c.PrimaryKey(), Err: err}
				}
				if !yield(record, err) {
					return
				}
			}

			switch move {
			case Stop:
				return
			case Continue:
				if err := c.Continue(); err != nil {
					yield(nil, err)
					return
				}
			case Stay:
			}
		}
	}
}

// --------------------------------------------------------------------------
// Combinators
// --------------------------------------------------------------------------

// All yields every record of the cursor.
func All(ctx context.Context, c db.Cursor) iter.Seq2[db.Record, error] {
	return Walk(ctx, c, StepFunc(func(db.Cursor) (bool, Move, error) {
		return true, Continue, nil
	}))
}

// TakeWhile yields records of s as long as pred holds. The first record
// failing pred is not yielded and ends the sequence. Item errors are passed
// through without calling pred.
func TakeWhile(s iter.Seq2[db.Record, error], pred func(db.Record) bool) iter.Seq2[db.Record, error] {
	return func(yield func(db.Record, error) bool) {
		for record, err := range s {
			if err == nil && !pred(record) {
				return
			}
			if !yield(record, err) {
				return
			}
		}
	}
}

// Take yields at most n records of s and stops right after the n-th, so the
// underlying cursor is not moved past it.
func Take(s iter.Seq2[db.Record, error], n int) iter.Seq2[db.Record, error] {
	return func(yield func(db.Record, error) bool) {
		if n <= 0 {
			return
		}
		taken := 0
		for record, err := range s {
			if !yield(record, err) {
				return
			}
			if err != nil {
				continue
			}
			if taken++; taken >= n {
				return
			}
		}
	}
}

// SkipTake skips the first skip records with a single Advance and yields
// at most take records after that (take <= 0 means no limit).
func SkipTake(ctx context.Context, c db.Cursor, skip, take int) iter.Seq2[db.Record, error] {
	return Walk(ctx, c, &Page{Skip: skip, Take: take})
}

// --------------------------------------------------------------------------
// Consumers
// --------------------------------------------------------------------------

// Collect drains s. Records that failed to load are returned as itemErrs,
// any other error ends the walk and is returned as err.
func Collect(s iter.Seq2[db.Record, error]) (records []db.Record, itemErrs []error, err error) {
	for record, e := range s {
		if e == nil {
			records = append(records, record)
			continue
		}
		var ie *ItemError
		if errors.As(e, &ie) {
			itemErrs = append(itemErrs, e)
			continue
		}
		return records, itemErrs, e
	}
	return records, itemErrs, nil
}
