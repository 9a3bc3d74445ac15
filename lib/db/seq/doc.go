// Package seq turns db.Cursor iteration into lazy Go sequences
// (iter.Seq2[db.Record, error]).
//
// A sequence is created per query and bound to one cursor. It does nothing
// until it is ranged over and it cannot be rewound: open a new cursor and
// build a new sequence to start over.
//
// Walk is the driver: at every valid cursor position it asks a Stepper whether
// to emit the record and how to move (Stop, Continue, Stay). On top of it:
//
//   - All: every record
//   - SkipTake: bulk skip with one Advance, then a bounded number of records (Page)
//   - TakeWhile, Take: stop early without moving the cursor any further
//   - Collect: drain a sequence, separating per-record failures (ItemError)
//     from errors that end the walk
//
// Sequences must be consumed inside the transaction the cursor belongs to.
package seq
