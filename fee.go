package apollo

import (
	"fmt"
	"math"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
)

// fakeVerificationKey, fakeSignature, fakeChainCode, and fakeAttributes are module-level
// immutable placeholders used to size a witness set before any real
// signature exists. Per design, these never need to vary: only their
// length matters to the size predictor and the linear fee formula.
var (
	fakeVerificationKey = make([]byte, 32)
	fakeSignature       = make([]byte, 64)
	fakeChainCode       = make([]byte, 32)
	fakeAttributes      = []byte{}
)

// LinearFee computes the base transaction fee a*size+b for a transaction of
// the given CBOR-encoded byte length.
func LinearFee(algo FeeAlgo, txSizeBytes int) uint64 {
	if txSizeBytes < 0 {
		return uint64(algo.B) //nolint:gosec // B is a protocol parameter, always non-negative
	}
	return uint64(algo.A)*uint64(txSizeBytes) + uint64(algo.B) //nolint:gosec // protocol parameters, always non-negative
}

// ScriptSurcharge computes ceil(memUnits*memPrice) + ceil(stepUnits*stepPrice)
// summed over every redeemer's ExUnits, rounding each term up independently
// before summing, per spec 4.3.
func ScriptSurcharge(redeemers map[common.RedeemerKey]common.RedeemerValue, memPrice, stepPrice float64) uint64 {
	var total uint64
	for _, rv := range redeemers {
		memFee := math.Ceil(float64(rv.ExUnits.Memory) * memPrice)
		stepFee := math.Ceil(float64(rv.ExUnits.Steps) * stepPrice)
		total += uint64(memFee) + uint64(stepFee) //nolint:gosec // ceil of a non-negative product
	}
	return total
}

// refScriptTierBytes is the protocol's reference-script fee tier width.
// Every full 25,600-byte tier is priced at the base rate multiplied by
// refScriptTierMultiplier raised to the tier index.
const refScriptTierBytes = 25600

// refScriptTierMultiplier is the per-tier price growth factor. It is a
// fixed protocol constant, not a config field: the config only exposes the
// base price per byte (TransactionBuilderConfig.RefScriptCoinsPerByte).
const refScriptTierMultiplier = 1.2

// ReferenceScriptSurcharge computes the tiered reference-script fee for
// totalBytes of reference scripts attached to a transaction's inputs, at
// pricePerByte lovelace/byte for the first tier. Each subsequent
// refScriptTierBytes-wide tier is priced at pricePerByte *
// refScriptTierMultiplier^tier; full tiers are priced exactly, a partial
// final tier is priced proportionally, and the total is floored once at
// the end (not per tier).
func ReferenceScriptSurcharge(totalBytes int, pricePerByte float64) uint64 {
	if totalBytes <= 0 || pricePerByte <= 0 {
		return 0
	}
	remaining := totalBytes
	var total float64
	tierPrice := pricePerByte
	for remaining > 0 {
		tierBytes := refScriptTierBytes
		if remaining < tierBytes {
			tierBytes = remaining
		}
		total += float64(tierBytes) * tierPrice
		remaining -= tierBytes
		tierPrice *= refScriptTierMultiplier
	}
	return uint64(math.Floor(total))
}

// scriptBytesLen returns the CBOR-encoded byte length of a script, the unit
// ReferenceScriptSurcharge prices by. PlutusV1/V2/V3 scripts are raw byte
// strings; native scripts are CBOR-encoded to measure their wire size.
func scriptBytesLen(script common.Script) (int, error) {
	switch s := script.(type) {
	case common.PlutusV1Script:
		return len(s), nil
	case common.PlutusV2Script:
		return len(s), nil
	case common.PlutusV3Script:
		return len(s), nil
	case common.NativeScript:
		encoded, err := cbor.Encode(s)
		if err != nil {
			return 0, err
		}
		return len(encoded), nil
	default:
		return 0, fmt.Errorf("unsupported script type: %T", script)
	}
}

// FakeWitnessPlan describes the shape of the witness set the builder must
// size a transaction with before real signatures exist. Per spec 4.3, the
// fake witness set carries one dummy vkey witness per distinct
// spending-credential key hash across inputs, collateral, required
// signers, certificate signers, withdrawal signers, mint native-script
// signers, and voting-proposal signers; one dummy bootstrap witness per
// Byron input; and the real native/Plutus scripts, datums, and redeemers,
// since those are already known before the transaction is balanced.
type FakeWitnessPlan struct {
	SignerHashes   map[common.Blake2b224]struct{}
	BootstrapCount int

	NativeScripts []common.NativeScript
	V1Scripts     []common.PlutusV1Script
	V2Scripts     []common.PlutusV2Script
	V3Scripts     []common.PlutusV3Script
	Datums        []common.Datum
	Redeemers     map[common.RedeemerKey]common.RedeemerValue
}

// NewFakeWitnessPlan starts a plan with an empty signer set.
func NewFakeWitnessPlan() *FakeWitnessPlan {
	return &FakeWitnessPlan{SignerHashes: make(map[common.Blake2b224]struct{})}
}

// AddSigner records that a vkey witness for keyHash is required in the fake
// witness set. Duplicate hashes across, e.g., an input and a required
// signer collapse to a single witness, matching the ledger's own
// deduplication of vkey witnesses by content.
func (p *FakeWitnessPlan) AddSigner(keyHash common.Blake2b224) {
	p.SignerHashes[keyHash] = struct{}{}
}

// Build constructs the fake ConwayTransactionWitnessSet described by the
// plan: len(SignerHashes) dummy vkey witnesses, BootstrapCount dummy
// bootstrap witnesses, and the real scripts/datums/redeemers verbatim.
func (p *FakeWitnessPlan) Build() conway.ConwayTransactionWitnessSet {
	ws := conway.ConwayTransactionWitnessSet{}

	if len(p.SignerHashes) > 0 {
		fake := make([]common.VkeyWitness, len(p.SignerHashes))
		for i := range fake {
			fake[i] = common.VkeyWitness{
				Vkey:      fakeVerificationKey,
				Signature: fakeSignature,
			}
		}
		ws.VkeyWitnesses = cbor.NewSetType(fake, true)
	}

	if p.BootstrapCount > 0 {
		fakeBootstraps := make([]common.BootstrapWitness, p.BootstrapCount)
		for i := range fakeBootstraps {
			fakeBootstraps[i] = common.BootstrapWitness{
				PublicKey:  fakeVerificationKey,
				Signature:  fakeSignature,
				ChainCode:  fakeChainCode,
				Attributes: fakeAttributes,
			}
		}
		ws.BootstrapWitnesses = cbor.NewSetType(fakeBootstraps, true)
	}

	if len(p.NativeScripts) > 0 {
		ws.WsNativeScripts = cbor.NewSetType(p.NativeScripts, true)
	}
	if len(p.V1Scripts) > 0 {
		ws.WsPlutusV1Scripts = cbor.NewSetType(p.V1Scripts, true)
	}
	if len(p.V2Scripts) > 0 {
		ws.WsPlutusV2Scripts = cbor.NewSetType(p.V2Scripts, true)
	}
	if len(p.V3Scripts) > 0 {
		ws.WsPlutusV3Scripts = cbor.NewSetType(p.V3Scripts, true)
	}
	if len(p.Datums) > 0 {
		ws.WsPlutusData = cbor.NewSetType(p.Datums, true)
	}
	if len(p.Redeemers) > 0 {
		ws.WsRedeemers = conway.ConwayRedeemers{Redeemers: p.Redeemers}
	}

	return ws
}
