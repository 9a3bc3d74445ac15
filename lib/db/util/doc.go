// Package util provides helpers shared by the engines in lib/db/engines.
//
// The package contains:
//   - statistics: A constant-memory SizeCollector that summarises record sizes for db.DatabaseInfo
package util
