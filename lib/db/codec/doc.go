// Package codec provides the record codecs used by the engines to turn
// db.Record values into bytes and back.
//
// Available codecs:
//   - gob: Default. Go's binary gob format, records come back with the Go
//     types they were written with (int stays int, []byte stays []byte).
//   - json: Portable and readable, but lossy: numbers come back as float64
//     and []byte values as base64 strings.
//
// A codec is chosen when a database is opened. Its name is stored in the
// catalog of the database, opening the same database with another codec
// fails with db.ErrCodec.
package codec
