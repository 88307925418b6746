package batch

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"

	apollo "github.com/Salvionied/apollo/v2"
)

func apolloQuantities(policyID common.Blake2b224, name string, qty uint64) *common.MultiAsset[common.MultiAssetTypeOutput] {
	return apollo.MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {name: qty}})
}

func fixedFeeEstimator(fee uint64) FeeEstimator {
	return func([]common.Utxo, []babbage.BabbageTransactionOutput) (uint64, error) {
		return fee, nil
	}
}

func testParams() Params {
	return Params{
		CoinsPerByte: 4310,
		AddressBytes: 57,
		MaxValueSize: 5000,
		MaxTxSize:    16384,
		EstimateFee:  fixedFeeEstimator(170000),
	}
}

func TestRunSingleBatchCoversAllUtxos(t *testing.T) {
	addr := testAddress(t)
	pool := []common.Utxo{
		makeUtxo(addr, 2_000_000, 1, 0, nil),
		makeUtxo(addr, 3_000_000, 2, 0, nil),
	}
	batches, err := Run(pool, addr, testParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch for a small pure-ADA pool, got %d", len(batches))
	}
	var totalIn int
	for _, b := range batches {
		totalIn += len(b.Inputs)
	}
	if totalIn != len(pool) {
		t.Errorf("expected every pool UTXO to be consumed, got %d of %d", totalIn, len(pool))
	}
}

func TestRunSplitsAcrossMaxTxSize(t *testing.T) {
	addr := testAddress(t)
	var pool []common.Utxo
	for i := byte(0); i < 20; i++ {
		pool = append(pool, makeUtxo(addr, 2_000_000, i+1, 0, nil))
	}
	params := testParams()
	params.MaxTxSize = 200 // small enough to force multiple batches

	batches, err := Run(pool, addr, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) < 2 {
		t.Errorf("expected the tight maxTxSize to force multiple batches, got %d", len(batches))
	}
	var totalIn int
	for _, b := range batches {
		totalIn += len(b.Inputs)
	}
	if totalIn != len(pool) {
		t.Errorf("expected every pool UTXO to be consumed across batches, got %d of %d", totalIn, len(pool))
	}
}

func TestRunGroupsAssetsOfSamePolicyTogether(t *testing.T) {
	addr := testAddress(t)
	policyID := testPolicyID()
	assetsA := apolloQuantities(policyID, "tokenA", 1)
	assetsB := apolloQuantities(policyID, "tokenB", 1)

	pool := []common.Utxo{
		makeUtxo(addr, 2_000_000, 1, 0, assetsA),
		makeUtxo(addr, 2_000_000, 2, 0, assetsB),
		makeUtxo(addr, 5_000_000, 3, 0, nil),
	}
	batches, err := Run(pool, addr, testParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var totalIn int
	for _, b := range batches {
		totalIn += len(b.Inputs)
	}
	if totalIn != len(pool) {
		t.Errorf("expected every pool UTXO to be consumed, got %d of %d", totalIn, len(pool))
	}
	grouped := false
	for _, b := range batches {
		for _, out := range b.Outputs {
			assets := out.OutputAmount.Assets
			if assets != nil && assets.Asset(policyID, []byte("tokenA")) != nil && assets.Asset(policyID, []byte("tokenB")) != nil {
				grouped = true
			}
		}
	}
	if !grouped {
		t.Error("expected tokenA and tokenB, which share a policy, to be placed in the same output")
	}
}

func TestRunEmptyPool(t *testing.T) {
	addr := testAddress(t)
	batches, err := Run(nil, addr, testParams())
	if err != nil {
		t.Fatalf("unexpected error for an empty pool: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("expected no batches for an empty pool, got %d", len(batches))
	}
}
