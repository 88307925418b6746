package apollo

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"
)

func fixedFee(fee uint64) MinFeeForTxFunc {
	return func([]babbage.BabbageTransactionOutput) (uint64, error) {
		return fee, nil
	}
}

func TestComputeShortageCoinOnly(t *testing.T) {
	shortage := computeShortage(Value{Coin: 1000}, Value{Coin: 400})
	if shortage.Coin != 600 {
		t.Errorf("computeShortage coin = %d, want 600", shortage.Coin)
	}
}

func TestComputeShortageNoneWhenCovered(t *testing.T) {
	shortage := computeShortage(Value{Coin: 400}, Value{Coin: 1000})
	if shortage.Coin != 0 {
		t.Errorf("computeShortage coin = %d, want 0 when fully covered", shortage.Coin)
	}
}

func TestAddChangeIfNeededPureAdaChange(t *testing.T) {
	addr := testAddress(t)
	inputs := Value{Coin: 10_000_000}
	outputs := Value{Coin: 5_000_000}

	result, err := AddChangeIfNeeded(inputs, outputs, addr, 4310, 57, 5000, false, fixedFee(170000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected exactly one change output, got %d", len(result.Outputs))
	}
	changeVal := ValueFromMaryValue(result.Outputs[0].OutputAmount)
	want := inputs.Coin - outputs.Coin - result.Fee
	if changeVal.Coin != want {
		t.Errorf("change coin = %d, want %d", changeVal.Coin, want)
	}
}

func TestAddChangeIfNeededResidualEqualsFee(t *testing.T) {
	addr := testAddress(t)
	inputs := Value{Coin: 5_170_000}
	outputs := Value{Coin: 5_000_000}

	result, err := AddChangeIfNeeded(inputs, outputs, addr, 4310, 57, 5000, false, fixedFee(170000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 0 {
		t.Errorf("expected no change output when residual exactly equals the fee, got %d", len(result.Outputs))
	}
	if result.Fee != 170000 {
		t.Errorf("expected fee 170000, got %d", result.Fee)
	}
}

func TestAddChangeIfNeededInsufficientInput(t *testing.T) {
	addr := testAddress(t)
	inputs := Value{Coin: 1_000_000}
	outputs := Value{Coin: 5_000_000}

	_, err := AddChangeIfNeeded(inputs, outputs, addr, 4310, 57, 5000, false, fixedFee(170000))
	if err == nil {
		t.Fatal("expected an error when inputs cannot cover outputs plus fee")
	}
}

func TestAddChangeIfNeededMultiAssetChange(t *testing.T) {
	addr := testAddress(t)
	policyID := makeTestPolicyID()
	assets := MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 10}})

	inputs := Value{Coin: 10_000_000, Assets: assets}
	outputs := Value{Coin: 5_000_000}

	result, err := AddChangeIfNeeded(inputs, outputs, addr, 4310, 57, 5000, false, fixedFee(170000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) == 0 {
		t.Fatal("expected at least one change output to carry the leftover assets")
	}
	last := ValueFromMaryValue(result.Outputs[len(result.Outputs)-1].OutputAmount)
	if !last.HasAssets() {
		t.Error("expected the change output to carry the residual assets")
	}
}

func TestSetTotalCollateralAndReturnZeroReturn(t *testing.T) {
	addr := testAddress(t)
	out, err := SetTotalCollateralAndReturn(Value{Coin: 5_000_000}, 5_000_000, addr, 4310, 57)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Error("expected no return output when total consumes the whole collateral input")
	}
}

func TestSetTotalCollateralAndReturnBelowMinAda(t *testing.T) {
	addr := testAddress(t)
	_, err := SetTotalCollateralAndReturn(Value{Coin: 5_000_000}, 4_999_999, addr, 4310, 57)
	if err == nil {
		t.Fatal("expected a min-ADA error for a dust return output")
	}
}

func TestSetTotalCollateralAndReturnNormal(t *testing.T) {
	addr := testAddress(t)
	out, err := SetTotalCollateralAndReturn(Value{Coin: 10_000_000}, 5_000_000, addr, 4310, 57)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil {
		t.Fatal("expected a return output")
	}
	val := ValueFromMaryValue(out.OutputAmount)
	if val.Coin != 5_000_000 {
		t.Errorf("return coin = %d, want 5000000", val.Coin)
	}
}
