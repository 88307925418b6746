package apollo

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/common"
)

func TestUintSize(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{23, 1},
		{24, 2},
		{0xff, 2},
		{0x100, 3},
		{0xffff, 3},
		{0x10000, 5},
		{0xffffffff, 5},
		{0x100000000, 9},
	}
	for _, c := range cases {
		if got := uintSize(c.v); got != c.want {
			t.Errorf("uintSize(%d) = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestByteStringSize(t *testing.T) {
	if got := byteStringSize(0); got != 1 {
		t.Errorf("byteStringSize(0) = %d, want 1", got)
	}
	if got := byteStringSize(32); got != 33 {
		t.Errorf("byteStringSize(32) = %d, want 33", got)
	}
}

func TestValueSizeCoinOnly(t *testing.T) {
	got := ValueSize(1000000, nil)
	if got != uintSize(1000000) {
		t.Errorf("ValueSize with no assets = %d, want %d", got, uintSize(1000000))
	}
}

func TestValueSizeWithAssets(t *testing.T) {
	var policyID common.Blake2b224
	copy(policyID[:], []byte("policyidpolicyidpolicyidpolicy01"))
	assets := MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{
		policyID: {"tokenA": 5},
	})
	got := ValueSize(1000000, assets)
	want := arrayHeaderSize(2) + uintSize(1000000) + MultiAssetSize(assets)
	if got != want {
		t.Errorf("ValueSize with assets = %d, want %d", got, want)
	}
}

func TestOutputSizePostAlonzoNoDatum(t *testing.T) {
	spec := SizeSpec{
		Format:       FormatPostAlonzo,
		AddressBytes: 57,
		Coin:         2000000,
	}
	got := OutputSize(spec)
	want := mapHeaderSize(2) + byteStringSize(57) + ValueSize(2000000, nil)
	if got != want {
		t.Errorf("OutputSize() = %d, want %d", got, want)
	}
}

func TestOutputSizeWithDatumHashAndScriptRef(t *testing.T) {
	spec := SizeSpec{
		Format:         FormatPostAlonzo,
		AddressBytes:   57,
		Coin:           2000000,
		Datum:          DatumHashPresent,
		DatumHashLen:   32,
		ScriptRefBytes: 100,
	}
	got := OutputSize(spec)
	want := mapHeaderSize(4) + byteStringSize(57) + ValueSize(2000000, nil) +
		datumSize(spec) + scriptRefSize(spec)
	if got != want {
		t.Errorf("OutputSize() with datum+scriptref = %d, want %d", got, want)
	}
	if got <= mapHeaderSize(2)+byteStringSize(57)+ValueSize(2000000, nil) {
		t.Error("adding datum and script ref should strictly increase size")
	}
}

func TestOutputSizeLegacy(t *testing.T) {
	spec := SizeSpec{
		Format:       FormatLegacy,
		AddressBytes: 57,
		Coin:         2000000,
		Datum:        DatumHashPresent,
		DatumHashLen: 32,
	}
	got := OutputSize(spec)
	want := arrayHeaderSize(3) + byteStringSize(57) + ValueSize(2000000, nil) + byteStringSize(32)
	if got != want {
		t.Errorf("OutputSize() legacy = %d, want %d", got, want)
	}
}
