package apollo

import "github.com/blinklabs-io/gouroboros/ledger/common"

// OutputFormat selects which on-chain output shape a SizeSpec predicts the
// size of. The predictor honours whichever form the caller last indicated,
// per spec: legacy outputs serialize as an array, post-Alonzo outputs as a
// map with integer keys.
type OutputFormat int

const (
	FormatPostAlonzo OutputFormat = iota
	FormatLegacy
)

// DatumKind selects which datum component, if any, a SizeSpec accounts for.
type DatumKind int

const (
	DatumNone DatumKind = iota
	DatumHashPresent
	DatumInlinePresent
)

// SizeSpec describes the shape of a transaction output well enough to
// predict its CBOR byte length without constructing or encoding the real
// output. Every field can be set independently of whether a concrete
// BabbageTransactionOutput exists yet, which is what lets the min-ADA
// fixed-point iteration and the change packer probe candidate outputs
// cheaply.
type SizeSpec struct {
	Format OutputFormat

	// AddressBytes is the raw (non-bech32) byte length of the address.
	AddressBytes int

	Coin   uint64
	Assets *common.MultiAsset[common.MultiAssetTypeOutput]

	Datum        DatumKind
	DatumHashLen int // bytes of the datum hash, used when Datum == DatumHashPresent
	DatumBytes   int // CBOR length of the inline datum payload, used when Datum == DatumInlinePresent

	// ScriptRefBytes is the CBOR length of the reference script payload, 0 if absent.
	ScriptRefBytes int
}

// uintSize returns the number of bytes a CBOR major-type-0 (or any other
// major type's length-header) integer encoding of v occupies: 1 byte for
// 0-23, plus 1/2/4/8 bytes at the 2^8/2^16/2^32/2^64 thresholds.
func uintSize(v uint64) int {
	switch {
	case v < 24:
		return 1
	case v <= 0xff:
		return 2
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// byteStringSize returns the header-plus-payload size of a CBOR byte string
// (or text string; both share the same length-header rule) of n bytes.
func byteStringSize(n int) int {
	return uintSize(uint64(n)) + n //nolint:gosec // n is a byte length, always small and non-negative
}

// arrayHeaderSize returns the CBOR header size for an array of n elements.
func arrayHeaderSize(n int) int {
	return uintSize(uint64(n)) //nolint:gosec // n is an element count, always small and non-negative
}

// mapHeaderSize returns the CBOR header size for a map of n key/value pairs.
func mapHeaderSize(n int) int {
	return uintSize(uint64(n)) //nolint:gosec // n is an entry count, always small and non-negative
}

// AssetNameSize returns the CBOR size of a single asset name key, a byte
// string of 0-32 bytes.
func AssetNameSize(name []byte) int {
	return byteStringSize(len(name))
}

// MultiAssetSize predicts the CBOR size of a MultiAsset: a map of policy ID
// to a map of asset name to coin quantity. Empty or nil multi-assets cost
// zero bytes extra (the caller is responsible for deciding whether to wrap
// this in the outer value array/tag).
func MultiAssetSize(m *common.MultiAsset[common.MultiAssetTypeOutput]) int {
	if m == nil {
		return 0
	}
	policies := m.Policies()
	size := mapHeaderSize(len(policies))
	for _, policyID := range policies {
		size += byteStringSize(common.Blake2b224Size)
		assetNames := m.Assets(policyID)
		size += mapHeaderSize(len(assetNames))
		for _, name := range assetNames {
			qty := m.Asset(policyID, name)
			size += AssetNameSize(name)
			if qty != nil {
				size += uintSize(qty.Uint64())
			} else {
				size += 1
			}
		}
	}
	return size
}

// ValueSize predicts the CBOR size of a Value: either a bare coin integer,
// or (when assets are present) a 2-element array of [coin, multiasset].
func ValueSize(coin uint64, assets *common.MultiAsset[common.MultiAssetTypeOutput]) int {
	if assets == nil || MultiAssetIsEmpty(assets) {
		return uintSize(coin)
	}
	return arrayHeaderSize(2) + uintSize(coin) + MultiAssetSize(assets)
}

// datumSize predicts the CBOR size of a BabbageTransactionOutputDatumOption:
// [0, hash] for a datum hash, or [1, #6.24(bytes)] for an inline datum,
// where the inline payload is itself tagged (major type 6, tag 24) around
// a byte string wrapping the already-CBOR-encoded datum.
func datumSize(spec SizeSpec) int {
	switch spec.Datum {
	case DatumHashPresent:
		return arrayHeaderSize(2) + 1 + byteStringSize(spec.DatumHashLen)
	case DatumInlinePresent:
		// tag header (2 bytes for tag 24) + byte string wrapping the datum CBOR.
		return arrayHeaderSize(2) + 1 + uintSize(24) + byteStringSize(spec.DatumBytes)
	default:
		return 0
	}
}

// scriptRefSize predicts the CBOR size of a script reference: a
// #6.24(bytes) tag wrapping the already-CBOR-encoded ScriptRef.
func scriptRefSize(spec SizeSpec) int {
	if spec.ScriptRefBytes == 0 {
		return 0
	}
	return uintSize(24) + byteStringSize(spec.ScriptRefBytes)
}

// OutputSize predicts the exact CBOR byte length of a transaction output
// described by spec, without serializing anything. Legacy outputs encode
// as an array [address, value(, datumHash)?]; post-Alonzo outputs encode
// as a map {0: address, 1: value, 2: datumOption?, 3: scriptRef?}.
func OutputSize(spec SizeSpec) int {
	addr := byteStringSize(spec.AddressBytes)
	value := ValueSize(spec.Coin, spec.Assets)

	if spec.Format == FormatLegacy {
		fields := 2
		extra := 0
		if spec.Datum == DatumHashPresent {
			fields = 3
			extra = byteStringSize(spec.DatumHashLen)
		}
		return arrayHeaderSize(fields) + addr + value + extra
	}

	fields := 2
	size := addr + value
	if spec.Datum != DatumNone {
		fields++
		size += datumSize(spec)
	}
	if spec.ScriptRefBytes > 0 {
		fields++
		size += scriptRefSize(spec)
	}
	return mapHeaderSize(fields) + size
}
