package batch

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"

	apollo "github.com/Salvionied/apollo/v2"
)

// FeeEstimator recomputes a proposal's minimum fee given the real inputs
// and outputs it currently holds, mirroring the parent builder's
// estimateFee. The batcher calls it once per finished batch, when
// materialize turns the proposal into real inputs and outputs.
type FeeEstimator func(inputs []common.Utxo, outputs []babbage.BabbageTransactionOutput) (uint64, error)

// Params bounds one transaction the batcher may emit.
type Params struct {
	CoinsPerByte int64
	AddressBytes int
	MaxValueSize int
	MaxTxSize    int
	EstimateFee  FeeEstimator
}

// Batch is one completed transaction proposal: the UTXOs it spends and the
// outputs it produces.
type Batch struct {
	Inputs  []common.Utxo
	Outputs []babbage.BabbageTransactionOutput
	Fee     uint64
}

// ParamsFromConfig builds Params from the ambient TransactionBuilderConfig
// (spec 6's config shape), the destination address's encoded length, and a
// fee estimator sourced from the caller's builder -- typically
// (*apollo.Apollo).EstimateTxFee.
func ParamsFromConfig(cfg apollo.TransactionBuilderConfig, addressBytes int, estimateFee FeeEstimator) Params {
	maxValueSize := cfg.MaxValueSize
	if maxValueSize <= 0 {
		maxValueSize = apollo.DefaultMaxValueSize
	}
	return Params{
		CoinsPerByte: cfg.CoinsPerUtxoByte,
		AddressBytes: addressBytes,
		MaxValueSize: maxValueSize,
		MaxTxSize:    cfg.MaxTxSize,
		EstimateFee:  estimateFee,
	}
}

// Run partitions pool into the minimum number of Batches that move every
// UTXO's value to destAddr, respecting params.MaxTxSize and
// params.MaxValueSize. Spec 4.5's failure mode -- a single UTXO whose
// value alone exceeds a limit -- surfaces as an error naming that UTXO.
func Run(pool []common.Utxo, destAddr common.Address, params Params) ([]Batch, error) {
	cat := NewCategorizer(pool, destAddr)
	var batches []Batch

	for cat.HasAssets() || cat.HasAda() {
		batch, err := buildOneBatch(cat, params)
		if err != nil {
			return nil, err
		}
		if len(batch.Inputs) == 0 {
			// Nothing could be appended to an empty transaction: the
			// remaining pool cannot be batched under these limits.
			return nil, fmt.Errorf("apollo/batch: remaining UTXOs cannot be placed into any transaction under maxTxSize=%d maxValueSize=%d", params.MaxTxSize, params.MaxValueSize)
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// buildOneBatch runs the per-transaction construction loop of spec 4.5:
// repeatedly pick the next UTXO via the three preference tiers, simulate
// appending it, and commit the append only if it keeps the transaction
// within both size limits.
func buildOneBatch(cat *Categorizer, params Params) (Batch, error) {
	proposal := NewProposal()

	for {
		changes, err := tryAppendNext(cat, proposal, params)
		if err != nil {
			return Batch{}, err
		}
		if changes == nil {
			break
		}
		for ui := range changes.assetUtxos {
			cat.RemoveAssetUtxo(ui)
		}
		for ui := range changes.adaUtxos {
			cat.RemovePureAdaUtxo(ui)
		}
		proposal = changes.proposal
	}

	return materialize(cat, proposal, params)
}

// proposalChanges mirrors the original's TxProposalChanges: a candidate
// next proposal plus which UTXOs it consumed, so the categorizer only
// removes them from its free pools once the candidate is accepted.
type proposalChanges struct {
	proposal   *Proposal
	assetUtxos map[UtxoIndex]struct{}
	adaUtxos   map[UtxoIndex]struct{}
}

func tryAppendNext(cat *Categorizer, proposal *Proposal, params Params) (*proposalChanges, error) {
	if cat.HasAssets() {
		return tryAppendNextAssetUtxo(cat, proposal, params)
	}
	if cat.HasAda() {
		return tryAppendPureAdaUtxo(cat, proposal, params)
	}
	return nil, nil
}

// tryAppendNextAssetUtxo implements the three preference tiers: an asset
// already used by this proposal, then a policy already used, then the
// highest-remaining-supply asset still free.
func tryAppendNextAssetUtxo(cat *Categorizer, proposal *Proposal, params Params) (*proposalChanges, error) {
	used := proposal.UsedAssets()

	if cand, err := makeCandidate(cat, proposal, params, cat.assetIntersections(used), false); err != nil || cand != nil {
		return cand, err
	}
	if cand, err := makeCandidate(cat, proposal, params, cat.policyIntersections(used), false); err != nil || cand != nil {
		return cand, err
	}
	return makeCandidate(cat, proposal, params, cat.assetsByRemainingSupply(), true)
}

// makeCandidate scans assets in priority order, trying every UTXO that
// still carries each one, and returns the first successful append. When
// chooseFirst is false (tiers a/b), an append that would open a brand new
// output is held back in favour of one that doesn't, since reusing the
// current output is strictly cheaper; chooseFirst short-circuits that
// preference for tier c, where any fit is as good as another.
func makeCandidate(cat *Categorizer, proposal *Proposal, params Params, assets []AssetIndex, chooseFirst bool) (*proposalChanges, error) {
	var withNewOutput *proposalChanges
	for _, a := range assets {
		for ui := range cat.freeAssetToUtxos[a] {
			changes, makesNewOutput, err := prototypeAppend(cat, proposal, params, ui)
			if err != nil {
				return nil, err
			}
			if changes == nil {
				continue
			}
			if !makesNewOutput {
				return changes, nil
			}
			if chooseFirst {
				return changes, nil
			}
			if withNewOutput == nil {
				withNewOutput = changes
			}
		}
	}
	return withNewOutput, nil
}

// prototypeAppend simulates adding ui to proposal: its assets are placed
// into the last output, overflowing into a new output if that would
// exceed MaxValueSize, then pure-ADA UTXOs top up any output now below
// min-ADA. Returns (nil, false, nil) if ui cannot be placed at all (e.g.
// it alone exceeds MaxValueSize and the proposal is otherwise empty, which
// is instead surfaced as an error per spec 4.5's failure mode).
func prototypeAppend(cat *Categorizer, proposal *Proposal, params Params, ui UtxoIndex) (*proposalChanges, bool, error) {
	cp := proposal.Clone()
	if len(cp.Outputs) == 0 {
		cp.AddNewOutput()
	}

	makesNewOutput, err := placeAssets(cat, cp, params, cat.AssetsOf(ui))
	if err != nil {
		if len(proposal.UsedUtxos) == 0 {
			return nil, false, fmt.Errorf("apollo/batch: utxo %d cannot be placed into any transaction, value too large for maxValueSize=%d", ui, params.MaxValueSize)
		}
		return nil, false, nil
	}

	cp.AddUtxo(ui)
	creditAda(cp, cat.Ada(ui))
	recalcOutputs(cat, cp, params)

	if estimateSize(cat, cp, params) > params.MaxTxSize {
		if len(proposal.UsedUtxos) == 0 {
			return nil, false, fmt.Errorf("apollo/batch: utxo %d cannot be placed into any transaction, transaction too large for maxTxSize=%d", ui, params.MaxTxSize)
		}
		return nil, false, nil
	}

	changes := &proposalChanges{proposal: cp, assetUtxos: map[UtxoIndex]struct{}{ui: {}}, adaUtxos: map[UtxoIndex]struct{}{}}

	if cp.NeedAda() > 0 {
		topped, ok := topUpWithAda(cat, cp, params, changes.adaUtxos)
		if !ok {
			return nil, false, nil
		}
		if estimateSize(cat, topped, params) > params.MaxTxSize {
			if len(proposal.UsedUtxos) == 0 {
				return nil, false, fmt.Errorf("apollo/batch: utxo %d cannot be placed into any transaction, transaction too large once min-ADA top-up is added", ui)
			}
			return nil, false, nil
		}
		changes.proposal = topped
	}

	return changes, makesNewOutput, nil
}

// placeAssets adds asset into the proposal's last output, opening a new
// output whenever the candidate value would exceed MaxValueSize. Returns
// whether a new output was opened.
func placeAssets(cat *Categorizer, p *Proposal, params Params, assets map[AssetIndex]struct{}) (bool, error) {
	openedNew := false
	for a := range assets {
		out := p.LastOutput()
		candidate := make(map[AssetIndex]struct{}, len(out.Assets)+1)
		for existing := range out.Assets {
			candidate[existing] = struct{}{}
		}
		candidate[a] = struct{}{}

		size := estimateOutputSize(cat, params, candidate)
		if size <= params.MaxValueSize {
			out.Assets[a] = struct{}{}
			continue
		}
		if len(out.Assets) == 0 {
			return openedNew, fmt.Errorf("apollo/batch: asset %d alone exceeds maxValueSize=%d", a, params.MaxValueSize)
		}
		p.AddNewOutput()
		openedNew = true
		newOut := p.LastOutput()
		singleton := map[AssetIndex]struct{}{a: {}}
		if estimateOutputSize(cat, params, singleton) > params.MaxValueSize {
			return openedNew, fmt.Errorf("apollo/batch: asset %d alone exceeds maxValueSize=%d", a, params.MaxValueSize)
		}
		newOut.Assets[a] = struct{}{}
	}
	return openedNew, nil
}

// estimateOutputSize predicts a post-Alonzo output's CBOR size carrying
// assets, using C1's pure predictor with a representative per-asset
// placeholder quantity (the real quantities are only known once the
// transaction's UTXOs are committed, but the byte length of an asset name
// plus its policy's key dominate the size, not the quantity's magnitude).
func estimateOutputSize(cat *Categorizer, params Params, assets map[AssetIndex]struct{}) int {
	if len(assets) == 0 {
		return apollo.OutputSize(apollo.SizeSpec{Format: apollo.FormatPostAlonzo, AddressBytes: params.AddressBytes})
	}
	grouped := make(map[common.Blake2b224]map[string]uint64)
	for a := range assets {
		policyID := cat.PolicyID(cat.PolicyOf(a))
		name := cat.AssetName(a)
		if grouped[policyID] == nil {
			grouped[policyID] = make(map[string]uint64)
		}
		grouped[policyID][string(name)] = 1
	}
	multiAsset := apollo.MultiAssetFromQuantities(grouped)
	return apollo.OutputSize(apollo.SizeSpec{Format: apollo.FormatPostAlonzo, AddressBytes: params.AddressBytes, Assets: multiAsset})
}

func creditAda(p *Proposal, amount uint64) {
	if out := p.LastOutput(); out != nil {
		out.TotalAda += amount
	}
}

// recalcOutputs refreshes each output's predicted min-ADA and size. It
// leaves TotalAda as credited, so an output still below MinAda shows up in
// NeedAda for topUpWithAda to cover from pure-ADA UTXOs.
func recalcOutputs(cat *Categorizer, p *Proposal, params Params) {
	for _, out := range p.Outputs {
		grouped := make(map[common.Blake2b224]map[string]uint64)
		for a := range out.Assets {
			policyID := cat.PolicyID(cat.PolicyOf(a))
			name := cat.AssetName(a)
			if grouped[policyID] == nil {
				grouped[policyID] = make(map[string]uint64)
			}
			grouped[policyID][string(name)] = 1
		}
		multiAsset := apollo.MultiAssetFromQuantities(grouped)
		spec := apollo.SizeSpec{Format: apollo.FormatPostAlonzo, AddressBytes: params.AddressBytes, Assets: multiAsset}
		out.MinAda = apollo.MinAda(spec, params.CoinsPerByte)
		spec.Coin = out.TotalAda
		out.Size = apollo.OutputSize(spec)
	}
}

// topUpWithAda drains pure-ADA UTXOs into the proposal until every output
// meets its min-ADA floor, recording which UTXOs were consumed in
// adaUtxos. Returns (proposal, false) if the free pure-ADA pool cannot
// cover the shortfall.
func topUpWithAda(cat *Categorizer, p *Proposal, params Params, adaUtxos map[UtxoIndex]struct{}) (*Proposal, bool) {
	need := p.NeedAda()
	if need == 0 {
		return p, true
	}
	picked, ok := cat.NextPureAdaUtxosByAmount(need, nil)
	if !ok {
		return p, false
	}
	for _, ui := range picked {
		p.AddUtxo(ui)
		adaUtxos[ui] = struct{}{}
		creditAda(p, cat.Ada(ui))
	}
	recalcOutputs(cat, p, params)
	return p, true
}

// tryAppendPureAdaUtxo implements the original's try_append_pure_ada_utxo:
// used when no native assets remain, draining pure-ADA UTXOs smallest
// first into a single output.
func tryAppendPureAdaUtxo(cat *Categorizer, proposal *Proposal, params Params) (*proposalChanges, error) {
	cp := proposal.Clone()
	adaUtxos := make(map[UtxoIndex]struct{})

	if cp.NeedAda() == 0 {
		ui, ok := cat.NextPureAdaUtxo()
		if !ok {
			return nil, nil
		}
		if len(cp.Outputs) == 0 {
			cp.AddNewOutput()
		}
		cp.AddUtxo(ui)
		adaUtxos[ui] = struct{}{}
		creditAda(cp, cat.Ada(ui))
	}

	recalcOutputs(cat, cp, params)

	if cp.NeedAda() > 0 {
		topped, ok := topUpWithAda(cat, cp, params, adaUtxos)
		if !ok {
			if len(proposal.UsedUtxos) == 0 {
				return nil, fmt.Errorf("apollo/batch: insufficient pure-ADA UTXOs to cover min-ADA")
			}
			return nil, nil
		}
		cp = topped
	}

	if estimateSize(cat, cp, params) > params.MaxTxSize {
		if len(proposal.UsedUtxos) == 0 {
			return nil, fmt.Errorf("apollo/batch: utxo cannot be placed into any transaction, value too big")
		}
		return nil, nil
	}

	return &proposalChanges{proposal: cp, assetUtxos: map[UtxoIndex]struct{}{}, adaUtxos: adaUtxos}, nil
}

// estimateSize predicts the whole transaction's CBOR size: a fixed
// bare-tx/body overhead, the summed predicted output sizes, and a fixed
// size estimate per input, mirroring get_tx_proposal_size.
func estimateSize(cat *Categorizer, p *Proposal, params Params) int {
	const bareTxOverhead = 16 // body map header + fixed-field overhead
	size := bareTxOverhead
	for _, out := range p.Outputs {
		size += out.Size
	}
	for range p.UsedUtxos {
		size += 38 // TransactionInput: [txHash(32 bytes), index] encodes to a small fixed size
	}
	return size
}

// materialize turns a finished Proposal into a Batch with real inputs,
// outputs, and a fee from params.EstimateFee.
func materialize(cat *Categorizer, p *Proposal, params Params) (Batch, error) {
	if len(p.UsedUtxos) == 0 {
		return Batch{}, nil
	}
	var inputs []common.Utxo
	for ui := range p.UsedUtxos {
		inputs = append(inputs, cat.Utxo(ui))
	}
	outputs := make([]babbage.BabbageTransactionOutput, 0, len(p.Outputs))
	for _, out := range p.Outputs {
		outputs = append(outputs, cat.BuildOutput(p.UsedUtxos, out))
	}
	fee, err := params.EstimateFee(inputs, outputs)
	if err != nil {
		return Batch{}, fmt.Errorf("apollo/batch: fee estimation failed: %w", err)
	}
	return Batch{Inputs: inputs, Outputs: outputs, Fee: fee}, nil
}
