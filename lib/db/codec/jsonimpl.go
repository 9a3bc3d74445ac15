package codec

import (
	"encoding/json"

	"github.com/ValentinKolb/objkv/lib/db"
)

// NewJSONCodec creates a new codec using json encoding. Numbers are decoded
// as float64 and []byte values as base64 strings.
func NewJSONCodec() IRecordCodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the IRecordCodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.IRecordCodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Name() string {
	return "json"
}

func (j jsonCodecImpl) Encode(record db.Record) ([]byte, error) {
	return json.Marshal(map[string]any(record))
}

func (j jsonCodecImpl) Decode(b []byte) (db.Record, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
