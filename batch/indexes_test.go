package batch

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/mary"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"

	apollo "github.com/Salvionied/apollo/v2"
)

func testAddress(t *testing.T) common.Address {
	t.Helper()
	var raw [57]byte
	raw[0] = 0x00
	raw[1] = 0xAA
	raw[29] = 0xBB
	addr, err := common.NewAddressFromBytes(raw[:])
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func testPolicyID() common.Blake2b224 {
	var p common.Blake2b224
	copy(p[:], []byte("policyidpolicyidpolicyidpolicy1"))
	return p
}

func makeUtxo(addr common.Address, lovelace uint64, txHashByte byte, index uint32, assets *common.MultiAsset[common.MultiAssetTypeOutput]) common.Utxo {
	var txHash common.Blake2b256
	txHash[0] = txHashByte
	input := shelley.ShelleyTransactionInput{TxId: txHash, OutputIndex: index}
	output := babbage.BabbageTransactionOutput{
		OutputAddress: addr,
		OutputAmount:  mary.MaryTransactionOutputValue{Amount: lovelace, Assets: assets},
	}
	return common.Utxo{Id: input, Output: &output}
}

func TestNewCategorizerSeparatesPureAdaFromAssets(t *testing.T) {
	addr := testAddress(t)
	policyID := testPolicyID()
	assets := apollo.MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 5}})

	pool := []common.Utxo{
		makeUtxo(addr, 2_000_000, 1, 0, nil),
		makeUtxo(addr, 3_000_000, 2, 0, assets),
	}
	cat := NewCategorizer(pool, addr)

	if !cat.HasAda() {
		t.Error("expected a pure-ADA UTXO in the free pool")
	}
	if !cat.HasAssets() {
		t.Error("expected an asset-carrying UTXO in the free pool")
	}
}

func TestCategorizerAssetQuantity(t *testing.T) {
	addr := testAddress(t)
	policyID := testPolicyID()
	assets := apollo.MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 7}})
	pool := []common.Utxo{makeUtxo(addr, 2_000_000, 1, 0, assets)}
	cat := NewCategorizer(pool, addr)

	var assetIdx AssetIndex
	for a := range cat.freeAssetToUtxos {
		assetIdx = a
	}
	if qty := cat.AssetQuantity(assetIdx, 0); qty != 7 {
		t.Errorf("AssetQuantity = %d, want 7", qty)
	}
}

func TestCategorizerNextPureAdaUtxoSmallestFirst(t *testing.T) {
	addr := testAddress(t)
	pool := []common.Utxo{
		makeUtxo(addr, 5_000_000, 1, 0, nil),
		makeUtxo(addr, 1_000_000, 2, 0, nil),
		makeUtxo(addr, 3_000_000, 3, 0, nil),
	}
	cat := NewCategorizer(pool, addr)
	ui, ok := cat.NextPureAdaUtxo()
	if !ok {
		t.Fatal("expected a pure-ADA UTXO")
	}
	if cat.Ada(ui) != 1_000_000 {
		t.Errorf("NextPureAdaUtxo returned ada=%d, want the smallest (1000000)", cat.Ada(ui))
	}
}

func TestCategorizerRemoveAssetUtxoShrinksFreePools(t *testing.T) {
	addr := testAddress(t)
	policyID := testPolicyID()
	assets := apollo.MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{policyID: {"tokenA": 1}})
	pool := []common.Utxo{makeUtxo(addr, 2_000_000, 1, 0, assets)}
	cat := NewCategorizer(pool, addr)

	if !cat.HasAssets() {
		t.Fatal("expected assets before removal")
	}
	cat.RemoveAssetUtxo(0)
	if cat.HasAssets() {
		t.Error("expected no assets left after removing the only asset-carrying UTXO")
	}
}

func TestCategorizerAssetIntersectionsAndPolicyIntersections(t *testing.T) {
	addr := testAddress(t)
	policyID := testPolicyID()
	assets := apollo.MultiAssetFromQuantities(map[common.Blake2b224]map[string]uint64{
		policyID: {"tokenA": 1, "tokenB": 1},
	})
	pool := []common.Utxo{makeUtxo(addr, 2_000_000, 1, 0, assets)}
	cat := NewCategorizer(pool, addr)

	var tokenA AssetIndex
	for a := range cat.freeAssetToUtxos {
		if string(cat.AssetName(a)) == "tokenA" {
			tokenA = a
		}
	}
	used := map[AssetIndex]struct{}{tokenA: {}}
	if inter := cat.assetIntersections(used); len(inter) != 1 || inter[0] != tokenA {
		t.Errorf("assetIntersections = %v, want just tokenA", inter)
	}
	// tokenB shares tokenA's policy, so it should show up under policyIntersections.
	policyInter := cat.policyIntersections(used)
	if len(policyInter) != 2 {
		t.Errorf("policyIntersections = %v, want both tokenA and tokenB", policyInter)
	}
}
