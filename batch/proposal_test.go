package batch

import (
	"testing"

	"github.com/blinklabs-io/gouroboros/ledger/common"

	apollo "github.com/Salvionied/apollo/v2"
)

func TestProposalAddNewOutputAndLastOutput(t *testing.T) {
	p := NewProposal()
	if p.LastOutput() != nil {
		t.Fatal("expected no outputs on a fresh proposal")
	}
	p.AddNewOutput()
	if p.LastOutput() == nil {
		t.Fatal("expected an output after AddNewOutput")
	}
}

func TestProposalNeedAda(t *testing.T) {
	p := NewProposal()
	p.AddNewOutput()
	p.LastOutput().MinAda = 1_000_000
	p.LastOutput().TotalAda = 400_000
	if got := p.NeedAda(); got != 600_000 {
		t.Errorf("NeedAda() = %d, want 600000", got)
	}
}

func TestProposalCloneIsIndependent(t *testing.T) {
	p := NewProposal()
	p.AddNewOutput()
	p.LastOutput().Assets[AssetIndex(1)] = struct{}{}
	p.AddUtxo(0)

	clone := p.Clone()
	clone.LastOutput().Assets[AssetIndex(2)] = struct{}{}
	clone.AddUtxo(1)

	if _, ok := p.LastOutput().Assets[AssetIndex(2)]; ok {
		t.Error("mutating the clone's assets should not affect the original")
	}
	if _, ok := p.UsedUtxos[1]; ok {
		t.Error("mutating the clone's used UTXOs should not affect the original")
	}
}

func TestProposalUsedAssets(t *testing.T) {
	p := NewProposal()
	p.AddNewOutput()
	p.LastOutput().Assets[AssetIndex(1)] = struct{}{}
	p.AddNewOutput()
	p.LastOutput().Assets[AssetIndex(2)] = struct{}{}

	used := p.UsedAssets()
	if len(used) != 2 {
		t.Errorf("UsedAssets() = %v, want 2 entries", used)
	}
}

func TestOutputProposalContainsOnlyAda(t *testing.T) {
	out := &OutputProposal{Assets: map[AssetIndex]struct{}{}}
	if !out.ContainsOnlyAda() {
		t.Error("expected ContainsOnlyAda to be true with no assets")
	}
	out.Assets[AssetIndex(1)] = struct{}{}
	if out.ContainsOnlyAda() {
		t.Error("expected ContainsOnlyAda to be false once an asset is added")
	}
}

func TestCategorizerBuildValueAndOutput(t *testing.T) {
	addr := testAddress(t)
	policyID := testPolicyID()
	assets := apolloQuantities(policyID, "tokenA", 3)
	utxo := makeUtxo(addr, 2_000_000, 1, 0, assets)
	cat := NewCategorizer([]common.Utxo{utxo}, addr)

	var assetIdx AssetIndex
	for a := range cat.freeAssetToUtxos {
		assetIdx = a
	}

	out := &OutputProposal{
		Assets:   map[AssetIndex]struct{}{assetIdx: {}},
		TotalAda: 2_000_000,
	}
	used := map[UtxoIndex]struct{}{0: {}}

	value := cat.BuildValue(used, out)
	if value.Coin != 2_000_000 {
		t.Errorf("BuildValue coin = %d, want 2000000", value.Coin)
	}
	if !value.HasAssets() {
		t.Error("expected BuildValue to carry the asset")
	}

	built := cat.BuildOutput(used, out)
	if builtVal := apollo.ValueFromMaryValue(built.OutputAmount); builtVal.Coin != 2_000_000 {
		t.Errorf("BuildOutput coin = %d, want 2000000", builtVal.Coin)
	}
}
