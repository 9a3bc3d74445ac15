package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/ValentinKolb/objkv/lib/db"
)

func init() {
	// nested values of a record travel as interface values
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(db.Record{})
}

// NewGOBCodec creates a new codec using Go's binary gob format.
// Unlike json it keeps the Go types of record values. Values of types that
// are not registered with gob (structs, pointers) cannot be encoded.
func NewGOBCodec() IRecordCodec {
	return &gobCodecImpl{}
}

// gobCodecImpl implements the IRecordCodec interface using gob encoding
type gobCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.IRecordCodec)
// --------------------------------------------------------------------------

func (g gobCodecImpl) Name() string {
	return "gob"
}

func (g gobCodecImpl) Encode(record db.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(map[string]any(record)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl) Decode(b []byte) (db.Record, error) {
	var m map[string]any
	dec := gob.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
