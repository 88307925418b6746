package apollo

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/common"
)

func TestLinearFee(t *testing.T) {
	algo := FeeAlgo{A: 44, B: 155381}
	got := LinearFee(algo, 300)
	want := uint64(44*300 + 155381)
	if got != want {
		t.Errorf("LinearFee() = %d, want %d", got, want)
	}
}

func TestLinearFeeNegativeSize(t *testing.T) {
	algo := FeeAlgo{A: 44, B: 155381}
	if got := LinearFee(algo, -1); got != uint64(algo.B) {
		t.Errorf("LinearFee() with negative size = %d, want %d", got, algo.B)
	}
}

func TestScriptSurcharge(t *testing.T) {
	redeemers := map[common.RedeemerKey]common.RedeemerValue{
		{Tag: common.RedeemerTagSpend, Index: 0}: {
			ExUnits: common.ExUnits{Memory: 1000000, Steps: 500000000},
		},
	}
	got := ScriptSurcharge(redeemers, 0.0577, 0.0000721)
	if got == 0 {
		t.Error("ScriptSurcharge should be nonzero for nonzero exunits")
	}
}

func TestScriptSurchargeSumsAcrossRedeemers(t *testing.T) {
	one := map[common.RedeemerKey]common.RedeemerValue{
		{Tag: common.RedeemerTagSpend, Index: 0}: {ExUnits: common.ExUnits{Memory: 1000000, Steps: 0}},
	}
	two := map[common.RedeemerKey]common.RedeemerValue{
		{Tag: common.RedeemerTagSpend, Index: 0}: {ExUnits: common.ExUnits{Memory: 1000000, Steps: 0}},
		{Tag: common.RedeemerTagMint, Index: 0}:  {ExUnits: common.ExUnits{Memory: 1000000, Steps: 0}},
	}
	feeOne := ScriptSurcharge(one, 0.0577, 0.0000721)
	feeTwo := ScriptSurcharge(two, 0.0577, 0.0000721)
	if feeTwo <= feeOne {
		t.Errorf("adding a second redeemer should increase the surcharge: one=%d two=%d", feeOne, feeTwo)
	}
}

func TestReferenceScriptSurchargeSingleTier(t *testing.T) {
	got := ReferenceScriptSurcharge(1000, 44)
	want := uint64(1000 * 44)
	if got != want {
		t.Errorf("ReferenceScriptSurcharge single tier = %d, want %d", got, want)
	}
}

func TestReferenceScriptSurchargeMultiTier(t *testing.T) {
	got := ReferenceScriptSurcharge(refScriptTierBytes+1, 44)
	firstTier := float64(refScriptTierBytes) * 44
	secondTier := float64(1) * 44 * refScriptTierMultiplier
	want := uint64(firstTier + secondTier)
	if got != want {
		t.Errorf("ReferenceScriptSurcharge multi tier = %d, want %d", got, want)
	}
}

func TestReferenceScriptSurchargeZero(t *testing.T) {
	if got := ReferenceScriptSurcharge(0, 44); got != 0 {
		t.Errorf("ReferenceScriptSurcharge(0, ...) = %d, want 0", got)
	}
	if got := ReferenceScriptSurcharge(1000, 0); got != 0 {
		t.Errorf("ReferenceScriptSurcharge(..., 0) = %d, want 0", got)
	}
}

func TestScriptBytesLenPlutusScripts(t *testing.T) {
	v1 := common.PlutusV1Script(make([]byte, 12))
	if n, err := scriptBytesLen(v1); err != nil || n != 12 {
		t.Errorf("scriptBytesLen(v1) = %d, %v, want 12, nil", n, err)
	}
	v3 := common.PlutusV3Script(make([]byte, 7))
	if n, err := scriptBytesLen(v3); err != nil || n != 7 {
		t.Errorf("scriptBytesLen(v3) = %d, %v, want 7, nil", n, err)
	}
}

func TestScriptBytesLenUnsupported(t *testing.T) {
	if _, err := scriptBytesLen(nil); err == nil {
		t.Error("expected an error for a nil script")
	}
}

func TestFakeWitnessPlanDedupesSigners(t *testing.T) {
	plan := NewFakeWitnessPlan()
	var hash common.Blake2b224
	copy(hash[:], []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	plan.AddSigner(hash)
	plan.AddSigner(hash)
	if len(plan.SignerHashes) != 1 {
		t.Errorf("AddSigner should dedupe by key hash, got %d entries", len(plan.SignerHashes))
	}
}

func TestFakeWitnessPlanBuildVkeyCount(t *testing.T) {
	plan := NewFakeWitnessPlan()
	var h1, h2 common.Blake2b224
	copy(h1[:], []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	copy(h2[:], []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	plan.AddSigner(h1)
	plan.AddSigner(h2)
	ws := plan.Build()
	if ws.VkeyWitnesses == nil {
		t.Fatal("expected vkey witnesses to be set")
	}
	if got := len(ws.VkeyWitnesses.Items()); got != 2 {
		t.Errorf("expected 2 fake vkey witnesses, got %d", got)
	}
}

func TestFakeWitnessPlanBuildBootstrapCount(t *testing.T) {
	plan := NewFakeWitnessPlan()
	plan.BootstrapCount = 3
	ws := plan.Build()
	if ws.BootstrapWitnesses == nil {
		t.Fatal("expected bootstrap witnesses to be set")
	}
	if got := len(ws.BootstrapWitnesses.Items()); got != 3 {
		t.Errorf("expected 3 fake bootstrap witnesses, got %d", got)
	}
}

func TestFakeWitnessPlanBuildEmpty(t *testing.T) {
	plan := NewFakeWitnessPlan()
	ws := plan.Build()
	if ws.VkeyWitnesses != nil {
		t.Error("expected no vkey witnesses for an empty plan")
	}
	if ws.BootstrapWitnesses != nil {
		t.Error("expected no bootstrap witnesses for an empty plan")
	}
}
