package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/rrcproc/internal/rrc"
)

// ErrEmptyBlob is returned when unpacking a zero-length blob.
var ErrEmptyBlob = errors.New("empty blob")

// JSONCodec packs cell group configurations as canonical JSON.
//
// It stands in for the ASN.1 UPER codec in scenarios and tests. Unpacking is
// strict: unknown fields and trailing data are decode errors.
type JSONCodec struct{}

// PackCellGroupConfig encodes cfg as canonical JSON.
func (JSONCodec) PackCellGroupConfig(cfg rrc.CellGroupConfig) ([]byte, error) {
	return MarshalCanonical(cfg)
}

// UnpackCellGroupConfig implements rrc.Codec.
func (JSONCodec) UnpackCellGroupConfig(blob []byte) (rrc.CellGroupConfig, error) {
	var cfg rrc.CellGroupConfig
	if len(blob) == 0 {
		return cfg, fmt.Errorf("unpack cell group config: %w", ErrEmptyBlob)
	}

	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return rrc.CellGroupConfig{}, fmt.Errorf("unpack cell group config: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return rrc.CellGroupConfig{}, fmt.Errorf("unpack cell group config: trailing data after object")
	}
	return cfg, nil
}
