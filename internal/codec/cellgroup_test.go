package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rrcproc/internal/rrc"
)

func TestJSONCodec_PackUnpack(t *testing.T) {
	var c JSONCodec
	cfg := rrc.CellGroupConfig{
		CellGroupID: 1,
		SpCell:      &rrc.PhyCell{PCI: 7, ARFCN: 634080},
		RLCBearers:  []uint32{1, 2},
	}

	blob, err := c.PackCellGroupConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"cell_group_id":1,"rlc_bearers":[1,2],"sp_cell":{"arfcn":634080,"pci":7}}`, string(blob))

	got, err := c.UnpackCellGroupConfig(blob)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestJSONCodec_UnpackErrors(t *testing.T) {
	tests := []struct {
		name string
		blob string
		msg  string
	}{
		{"empty", "", "empty blob"},
		{"truncated", `{"cell_group_id":`, "unexpected EOF"},
		{"unknown field", `{"cell_group_id":1,"bogus":true}`, "unknown field"},
		{"trailing data", `{"cell_group_id":1}{}`, "trailing data"},
		{"wrong type", `{"cell_group_id":"one"}`, "cannot unmarshal"},
	}

	var c JSONCodec
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.UnpackCellGroupConfig([]byte(tt.blob))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestJSONCodec_SatisfiesRRCCodec(t *testing.T) {
	var _ rrc.Codec = JSONCodec{}
}
