// Package cmd implements the command-line interface of objkv. It opens a
// database with one of the engines of lib/db/engines and runs the store
// operations of lib/store against it.
//
// The package is organized into several subpackages:
//
//   - obj: Commands for the object store operations (insert, get, scan, page, delete, ...)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through the environment as OBJKV_<FLAG>
// (e.g. OBJKV_DATA_DIR=/var/lib/objkv), .env and .env.local are read on start.
//
// See objkv -help for a list of all commands.
package cmd
