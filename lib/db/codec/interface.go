package codec

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/objkv/lib/db"
)

// IRecordCodec is the interface for all record codecs. Engines store records
// as the bytes produced by Encode and decode them into fresh maps on every read.
type IRecordCodec interface {
	// Name returns the name of the codec. It is recorded in the catalog of a
	// database so a database is never read with a different codec.
	Name() string
	// Encode encodes a record into a byte array
	Encode(record db.Record) ([]byte, error)
	// Decode decodes a byte array into a new record
	Decode(b []byte) (db.Record, error)
}

// Names lists the names accepted by ByName.
var Names = []string{"gob", "json"}

// ByName returns the codec with the given name (case-insensitive).
func ByName(name string) (IRecordCodec, error) {
	switch strings.ToLower(name) {
	case "gob", "":
		return NewGOBCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q (valid: %s)", name, strings.Join(Names, ", "))
	}
}
