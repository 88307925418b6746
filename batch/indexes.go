// Package batch implements the batcher (spec 4.5): partitioning a large
// UTXO set into the minimum number of transactions that move all value to
// one destination address, respecting maxTxSize and maxValueSize.
//
// It is grounded on the original implementation's asset_categorizer.rs:
// every UTXO is indexed once into per-asset and per-policy free pools, and
// the construction loop greedily drains those pools UTXO by UTXO, closing
// a transaction only when nothing more fits.
package batch

import (
	"sort"

	"github.com/blinklabs-io/gouroboros/ledger/common"
)

// UtxoIndex identifies a UTXO by its position in the categorizer's pool.
type UtxoIndex int

// AssetIndex identifies one (policy, asset name) pair seen anywhere in the
// pool.
type AssetIndex int

// PolicyIndex identifies one policy ID seen anywhere in the pool.
type PolicyIndex int

// planeAssetID is an (policy, name) pair used only to intern AssetIndex
// values -- the name is kept as a string since []byte cannot key a map.
type planeAssetID struct {
	policy PolicyIndex
	name   string
}

// Categorizer indexes a UTXO pool for the batcher's greedy construction
// loop. It owns two free pools -- free_utxo_to_assets/free_asset_to_utxos
// in the original -- plus a sorted pure-ADA list, and shrinks both pools as
// UtxoIndex values are consumed by a transaction proposal.
type Categorizer struct {
	address common.Address

	utxos     []common.Utxo
	addresses []common.Address
	utxoAda   []uint64

	policies   []common.Blake2b224
	assetNames []struct {
		policy PolicyIndex
		name   []byte
	}
	assetsAmounts []map[UtxoIndex]*bigIntAmount

	assetToPolicy  map[AssetIndex]PolicyIndex
	policyToAssets map[PolicyIndex]map[AssetIndex]struct{}

	freeUtxoToAssets map[UtxoIndex]map[AssetIndex]struct{}
	freeAssetToUtxos map[AssetIndex]map[UtxoIndex]struct{}

	freeAdaUtxos []UtxoIndex // sorted ascending by ada
}

// bigIntAmount avoids importing math/big into every call site that only
// wants a uint64; native-asset quantities fit comfortably in one.
type bigIntAmount struct {
	value uint64
}

// NewCategorizer builds a Categorizer over pool, the set of UTXOs available
// to fund transactions sent to address.
func NewCategorizer(pool []common.Utxo, address common.Address) *Categorizer {
	c := &Categorizer{
		address:          address,
		assetToPolicy:    make(map[AssetIndex]PolicyIndex),
		policyToAssets:   make(map[PolicyIndex]map[AssetIndex]struct{}),
		freeUtxoToAssets: make(map[UtxoIndex]map[AssetIndex]struct{}),
		freeAssetToUtxos: make(map[AssetIndex]map[UtxoIndex]struct{}),
	}

	policyIdx := make(map[common.Blake2b224]PolicyIndex)
	assetIdx := make(map[planeAssetID]AssetIndex)

	for i, utxo := range pool {
		ui := UtxoIndex(i)
		c.utxos = append(c.utxos, utxo)
		c.addresses = append(c.addresses, utxo.Output.Address())
		c.utxoAda = append(c.utxoAda, amountOf(utxo))

		assets := utxo.Output.Assets()
		if assets == nil {
			c.freeAdaUtxos = append(c.freeAdaUtxos, ui)
			continue
		}

		for _, policyID := range assets.Policies() {
			pIdx, ok := policyIdx[policyID]
			if !ok {
				pIdx = PolicyIndex(len(c.policies))
				policyIdx[policyID] = pIdx
				c.policies = append(c.policies, policyID)
			}
			for _, name := range assets.Assets(policyID) {
				plane := planeAssetID{policy: pIdx, name: string(name)}
				aIdx, ok := assetIdx[plane]
				if !ok {
					aIdx = AssetIndex(len(c.assetNames))
					assetIdx[plane] = aIdx
					c.assetNames = append(c.assetNames, struct {
						policy PolicyIndex
						name   []byte
					}{policy: pIdx, name: name})
					c.assetsAmounts = append(c.assetsAmounts, make(map[UtxoIndex]*bigIntAmount))
					c.assetToPolicy[aIdx] = pIdx
					if c.policyToAssets[pIdx] == nil {
						c.policyToAssets[pIdx] = make(map[AssetIndex]struct{})
					}
					c.policyToAssets[pIdx][aIdx] = struct{}{}
				}

				qty := assets.Asset(policyID, name)
				amt := uint64(0)
				if qty != nil {
					amt = qty.Uint64()
				}
				c.assetsAmounts[aIdx][ui] = &bigIntAmount{value: amt}

				if c.freeAssetToUtxos[aIdx] == nil {
					c.freeAssetToUtxos[aIdx] = make(map[UtxoIndex]struct{})
				}
				c.freeAssetToUtxos[aIdx][ui] = struct{}{}
				if c.freeUtxoToAssets[ui] == nil {
					c.freeUtxoToAssets[ui] = make(map[AssetIndex]struct{})
				}
				c.freeUtxoToAssets[ui][aIdx] = struct{}{}
			}
		}
	}

	sort.Slice(c.freeAdaUtxos, func(i, j int) bool {
		return c.utxoAda[c.freeAdaUtxos[i]] < c.utxoAda[c.freeAdaUtxos[j]]
	})

	return c
}

func amountOf(u common.Utxo) uint64 {
	amt := u.Output.Amount()
	if amt == nil {
		return 0
	}
	return amt.Uint64()
}

// HasAssets reports whether any native asset remains in the free pool.
func (c *Categorizer) HasAssets() bool {
	return len(c.freeAssetToUtxos) > 0
}

// HasAda reports whether any pure-ADA UTXO remains in the free pool.
func (c *Categorizer) HasAda() bool {
	return len(c.freeAdaUtxos) > 0
}

// Utxo returns the raw UTXO at index i.
func (c *Categorizer) Utxo(i UtxoIndex) common.Utxo { return c.utxos[i] }

// Ada returns the lovelace amount of the UTXO at index i.
func (c *Categorizer) Ada(i UtxoIndex) uint64 { return c.utxoAda[i] }

// AssetsOf returns the asset indexes UTXO i still carries in the free pool.
func (c *Categorizer) AssetsOf(i UtxoIndex) map[AssetIndex]struct{} {
	return c.freeUtxoToAssets[i]
}

// PolicyOf returns the policy an asset index belongs to.
func (c *Categorizer) PolicyOf(a AssetIndex) PolicyIndex { return c.assetToPolicy[a] }

// PolicyID returns the raw policy ID for a policy index.
func (c *Categorizer) PolicyID(p PolicyIndex) common.Blake2b224 { return c.policies[p] }

// AssetName returns the raw asset name for an asset index.
func (c *Categorizer) AssetName(a AssetIndex) []byte { return c.assetNames[a].name }

// AssetQuantity returns how much of asset a UTXO ui carries, 0 if none.
func (c *Categorizer) AssetQuantity(a AssetIndex, ui UtxoIndex) uint64 {
	if amt, ok := c.assetsAmounts[a][ui]; ok {
		return amt.value
	}
	return 0
}

// assetsByRemainingSupply returns every free asset index, most UTXOs
// carrying it first -- the categorizer's proxy for "highest remaining
// supply" (tier c of the preference order).
func (c *Categorizer) assetsByRemainingSupply() []AssetIndex {
	assets := make([]AssetIndex, 0, len(c.freeAssetToUtxos))
	for a := range c.freeAssetToUtxos {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		ci, cj := len(c.freeAssetToUtxos[assets[i]]), len(c.freeAssetToUtxos[assets[j]])
		if ci != cj {
			return ci > cj
		}
		return assets[i] < assets[j]
	})
	return assets
}

// assetIntersections returns free asset indexes that already appear in
// usedAssets, most-remaining-supply first (tier a).
func (c *Categorizer) assetIntersections(usedAssets map[AssetIndex]struct{}) []AssetIndex {
	var out []AssetIndex
	for _, a := range c.assetsByRemainingSupply() {
		if _, ok := usedAssets[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// policyIntersections returns free asset indexes belonging to a policy
// already present in usedAssets, most-remaining-supply first (tier b).
func (c *Categorizer) policyIntersections(usedAssets map[AssetIndex]struct{}) []AssetIndex {
	usedPolicies := make(map[PolicyIndex]struct{})
	for a := range usedAssets {
		usedPolicies[c.assetToPolicy[a]] = struct{}{}
	}
	var out []AssetIndex
	for _, a := range c.assetsByRemainingSupply() {
		if _, ok := usedPolicies[c.assetToPolicy[a]]; ok {
			out = append(out, a)
		}
	}
	return out
}

// RemoveAssetUtxo removes ui from every free-asset pool it belonged to,
// called once its assets have been committed to a proposal.
func (c *Categorizer) RemoveAssetUtxo(ui UtxoIndex) {
	for a := range c.freeUtxoToAssets[ui] {
		delete(c.freeAssetToUtxos[a], ui)
		if len(c.freeAssetToUtxos[a]) == 0 {
			delete(c.freeAssetToUtxos, a)
		}
	}
	delete(c.freeUtxoToAssets, ui)
}

// RemovePureAdaUtxo removes ui from the pure-ADA free list.
func (c *Categorizer) RemovePureAdaUtxo(ui UtxoIndex) {
	for i, u := range c.freeAdaUtxos {
		if u == ui {
			c.freeAdaUtxos = append(c.freeAdaUtxos[:i], c.freeAdaUtxos[i+1:]...)
			return
		}
	}
}

// NextPureAdaUtxo returns the smallest remaining pure-ADA UTXO, preferring
// to spend small change first and leave large UTXOs free for later
// transactions.
func (c *Categorizer) NextPureAdaUtxo() (UtxoIndex, bool) {
	if len(c.freeAdaUtxos) == 0 {
		return 0, false
	}
	return c.freeAdaUtxos[0], true
}

// NextPureAdaUtxosByAmount greedily drains pure-ADA UTXOs, largest first,
// until need lovelace is covered or the pool is exhausted.
func (c *Categorizer) NextPureAdaUtxosByAmount(need uint64, ignore map[UtxoIndex]struct{}) ([]UtxoIndex, bool) {
	var picked []UtxoIndex
	for i := len(c.freeAdaUtxos) - 1; i >= 0 && need > 0; i-- {
		ui := c.freeAdaUtxos[i]
		if _, skip := ignore[ui]; skip {
			continue
		}
		picked = append(picked, ui)
		amt := c.utxoAda[ui]
		if amt >= need {
			need = 0
		} else {
			need -= amt
		}
	}
	return picked, need == 0
}

// Address returns the destination address the categorizer was built for.
func (c *Categorizer) Address() common.Address { return c.address }
