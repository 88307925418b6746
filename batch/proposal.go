package batch

import (
	"math/big"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"

	apollo "github.com/Salvionied/apollo/v2"
)

// OutputProposal is one output under construction: the assets it has
// accumulated so far and the running total ADA it carries (before min-ADA
// top-up is applied).
type OutputProposal struct {
	Assets   map[AssetIndex]struct{}
	TotalAda uint64
	MinAda   uint64
	Size     int
}

// ContainsOnlyAda reports whether the output carries no native assets.
func (o *OutputProposal) ContainsOnlyAda() bool { return len(o.Assets) == 0 }

// Proposal is a transaction under construction by the batcher: the UTXOs
// consumed so far and the outputs they have been packed into.
type Proposal struct {
	UsedUtxos map[UtxoIndex]struct{}
	Outputs   []*OutputProposal
	Fee       uint64
}

// NewProposal starts an empty transaction proposal.
func NewProposal() *Proposal {
	return &Proposal{UsedUtxos: make(map[UtxoIndex]struct{})}
}

// Clone returns a deep-enough copy for speculative append-then-maybe-reject
// evaluation: the categorizer's construction loop always builds changes on
// a clone and only commits them on success.
func (p *Proposal) Clone() *Proposal {
	cp := &Proposal{
		UsedUtxos: make(map[UtxoIndex]struct{}, len(p.UsedUtxos)),
		Outputs:   make([]*OutputProposal, len(p.Outputs)),
		Fee:       p.Fee,
	}
	for k := range p.UsedUtxos {
		cp.UsedUtxos[k] = struct{}{}
	}
	for i, o := range p.Outputs {
		assets := make(map[AssetIndex]struct{}, len(o.Assets))
		for a := range o.Assets {
			assets[a] = struct{}{}
		}
		cp.Outputs[i] = &OutputProposal{Assets: assets, TotalAda: o.TotalAda, MinAda: o.MinAda, Size: o.Size}
	}
	return cp
}

// UsedAssets returns every asset index present in any output.
func (p *Proposal) UsedAssets() map[AssetIndex]struct{} {
	used := make(map[AssetIndex]struct{})
	for _, o := range p.Outputs {
		for a := range o.Assets {
			used[a] = struct{}{}
		}
	}
	return used
}

// AddNewOutput opens a fresh, empty output.
func (p *Proposal) AddNewOutput() {
	p.Outputs = append(p.Outputs, &OutputProposal{Assets: make(map[AssetIndex]struct{})})
}

// LastOutput returns the most recently opened output, or nil if there are
// none yet.
func (p *Proposal) LastOutput() *OutputProposal {
	if len(p.Outputs) == 0 {
		return nil
	}
	return p.Outputs[len(p.Outputs)-1]
}

// AddUtxo records ui as consumed. It does not credit ui's ADA; the
// batcher's creditAda adds that to whichever output is being filled.
func (p *Proposal) AddUtxo(ui UtxoIndex) {
	p.UsedUtxos[ui] = struct{}{}
}

// NeedAda reports how much more lovelace every output still needs to meet
// its min-ADA floor, summed across outputs.
func (p *Proposal) NeedAda() uint64 {
	var need uint64
	for _, o := range p.Outputs {
		if o.TotalAda < o.MinAda {
			need += o.MinAda - o.TotalAda
		}
	}
	return need
}

// BuildValue materializes the real apollo.Value an output proposal
// represents, reading each asset's quantity from the categorizer's
// per-asset amount table restricted to usedUtxos (the UTXOs this
// transaction actually consumes).
func (c *Categorizer) BuildValue(usedUtxos map[UtxoIndex]struct{}, out *OutputProposal) apollo.Value {
	value := apollo.NewSimpleValue(out.TotalAda)
	if len(out.Assets) == 0 {
		return value
	}
	grouped := make(map[common.Blake2b224]map[cbor.ByteString]*big.Int)
	for a := range out.Assets {
		policyID := c.PolicyID(c.PolicyOf(a))
		name := c.AssetName(a)
		var qty uint64
		for ui := range usedUtxos {
			qty += c.AssetQuantity(a, ui)
		}
		if qty == 0 {
			continue
		}
		if grouped[policyID] == nil {
			grouped[policyID] = make(map[cbor.ByteString]*big.Int)
		}
		key := cbor.NewByteString(name)
		if existing, ok := grouped[policyID][key]; ok {
			existing.Add(existing, new(big.Int).SetUint64(qty))
		} else {
			grouped[policyID][key] = new(big.Int).SetUint64(qty)
		}
	}
	value.Assets = apollo.MultiAssetFromMap(grouped)
	return value
}

// BuildOutput turns an OutputProposal into a real BabbageTransactionOutput
// addressed to the categorizer's destination.
func (c *Categorizer) BuildOutput(usedUtxos map[UtxoIndex]struct{}, out *OutputProposal) babbage.BabbageTransactionOutput {
	value := c.BuildValue(usedUtxos, out)
	return apollo.NewBabbageOutput(c.address, value, nil, nil)
}
