// Package core implements the object database semantics shared by all engines:
// catalog and schema upgrades, records keyed by a key path, secondary indexes
// with unique constraints and forward cursors with range bounds.
//
// An engine only provides a Driver, that is transactions over named buckets
// of ordered bytes. Records live in one bucket per store (primary key ->
// encoded record), every index has its own bucket (index value + primary
// key -> primary key), a refs bucket per store lists the index entries of
// each record (primary key -> index name + value pairs) and the catalog is
// kept in a meta bucket.
package core
