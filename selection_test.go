package apollo

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/mary"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
)

func makeSelectionTestUtxo(addr common.Address, lovelace uint64, txHashByte byte, index uint32) common.Utxo {
	var txHash common.Blake2b256
	txHash[0] = txHashByte
	input := shelley.ShelleyTransactionInput{TxId: txHash, OutputIndex: index}
	output := babbage.BabbageTransactionOutput{
		OutputAddress: addr,
		OutputAmount:  mary.MaryTransactionOutputValue{Amount: lovelace},
	}
	return common.Utxo{Id: input, Output: &output}
}

func noMarginalFee(common.Utxo) (uint64, error) { return 0, nil }

func TestSelectLargestFirstPicksFewestLargest(t *testing.T) {
	addr := testAddress(t)
	pool := []common.Utxo{
		makeSelectionTestUtxo(addr, 1000000, 1, 0),
		makeSelectionTestUtxo(addr, 5000000, 2, 0),
		makeSelectionTestUtxo(addr, 3000000, 3, 0),
	}
	selected, remaining, err := SelectLargestFirst(pool, Value{Coin: 4000000}, noMarginalFee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 1 {
		t.Fatalf("expected exactly the largest UTxO to cover the target, got %d selected", len(selected))
	}
	if utxoAda(selected[0]) != 5000000 {
		t.Errorf("expected the 5000000 UTxO to be selected, got %d", utxoAda(selected[0]))
	}
	if len(remaining) != 2 {
		t.Errorf("expected 2 remaining UTxOs, got %d", len(remaining))
	}
}

func TestSelectLargestFirstInsufficientFunds(t *testing.T) {
	addr := testAddress(t)
	pool := []common.Utxo{makeSelectionTestUtxo(addr, 1000000, 1, 0)}
	_, _, err := SelectLargestFirst(pool, Value{Coin: 5000000}, noMarginalFee)
	if err == nil {
		t.Fatal("expected an error for insufficient funds")
	}
	var shortage *ShortageError
	if !asShortageError(err, &shortage) {
		t.Fatalf("expected a *ShortageError, got %v", err)
	}
}

func asShortageError(err error, target **ShortageError) bool {
	se, ok := err.(*ShortageError)
	if !ok {
		return false
	}
	*target = se
	return true
}

func TestSelectLargestFirstRejectsAssetTarget(t *testing.T) {
	policyID := makeTestPolicyID()
	assets := MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 1}})
	_, _, err := SelectLargestFirst(nil, Value{Coin: 0, Assets: assets}, noMarginalFee)
	if err == nil {
		t.Fatal("expected an error when target carries assets")
	}
}

func makeTestPolicyID() common.Blake2b224 {
	var policyID common.Blake2b224
	copy(policyID[:], []byte("policyidpolicyidpolicyidpolicy01"))
	return policyID
}

func TestSelectLargestFirstMultiAssetCoversAssetAndAda(t *testing.T) {
	addr := testAddress(t)
	policyID := makeTestPolicyID()

	assetUtxo := makeSelectionTestUtxo(addr, 1500000, 1, 0)
	assets := MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 10}})
	out := assetUtxo.Output.(*babbage.BabbageTransactionOutput)
	out.OutputAmount.Assets = assets

	pool := []common.Utxo{
		assetUtxo,
		makeSelectionTestUtxo(addr, 3000000, 2, 0),
	}
	target := Value{
		Coin:   2000000,
		Assets: MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 5}}),
	}
	selected, _, err := SelectLargestFirstMultiAsset(pool, target, noMarginalFee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) < 1 {
		t.Fatal("expected at least the asset-carrying UTxO to be selected")
	}
	foundAsset := false
	for _, u := range selected {
		if qty := assetQtyOf(u, policyID, []byte("tokenA")); qty != nil && qty.Sign() > 0 {
			foundAsset = true
		}
	}
	if !foundAsset {
		t.Error("expected the asset-carrying UTxO among selected inputs")
	}
}

func TestSelectInputsDispatch(t *testing.T) {
	addr := testAddress(t)
	pool := []common.Utxo{makeSelectionTestUtxo(addr, 5000000, 1, 0)}
	selected, _, err := SelectInputs(StrategyLargestFirst, pool, Value{Coin: 1000000}, noMarginalFee, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 1 {
		t.Errorf("expected 1 selected UTxO, got %d", len(selected))
	}
}

func TestSelectInputsUnknownStrategy(t *testing.T) {
	_, _, err := SelectInputs(SelectionStrategy(99), nil, Value{}, noMarginalFee, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}

func TestSelectRandomImproveCoversTarget(t *testing.T) {
	addr := testAddress(t)
	pool := []common.Utxo{
		makeSelectionTestUtxo(addr, 1000000, 1, 0),
		makeSelectionTestUtxo(addr, 2000000, 2, 0),
		makeSelectionTestUtxo(addr, 4000000, 3, 0),
	}
	selected, _, err := SelectRandomImprove(pool, Value{Coin: 3000000}, noMarginalFee, defaultRand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total uint64
	for _, u := range selected {
		total += utxoAda(u)
	}
	if total < 3000000 {
		t.Errorf("selected total %d does not cover target 3000000", total)
	}
}
