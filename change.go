package apollo

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"
)

// MinFeeForTxFunc recomputes the whole transaction's minimum fee with
// extraOutputs appended to whatever output set the caller is currently
// balancing, letting the change packer ask "what would the fee become if
// I added this change output" without depending on the concrete Builder.
type MinFeeForTxFunc func(extraOutputs []babbage.BabbageTransactionOutput) (uint64, error)

// ChangeResult is what AddChangeIfNeeded produces: zero or more change
// outputs to append, plus the fee the caller should freeze at.
type ChangeResult struct {
	Outputs []babbage.BabbageTransactionOutput
	Fee     uint64
}

// computeShortage returns, for each component of required not covered by
// available, the positive amount still missing; a component available
// fully covers is omitted rather than going negative. This stands in for
// overloading Value.Sub the way the source's checkedSub does (design
// note 1): addChangeIfNeeded needs a pure breakdown of what's missing,
// never a signed balance.
func computeShortage(required, available Value) Value {
	var shortage Value
	if required.Coin > available.Coin {
		shortage.Coin = required.Coin - available.Coin
	}
	if required.Assets != nil {
		missing := CloneMultiAsset(required.Assets)
		subtractAssetsSaturating(missing, available.Assets)
		if !MultiAssetIsEmpty(missing) {
			shortage.Assets = missing
		}
	}
	return shortage
}

// policyMultiAsset extracts just policyID's asset map from m as its own
// single-policy MultiAsset, so a change output can gain one policy's
// worth of assets at a time without ever splitting a policy's names
// across two outputs.
func policyMultiAsset(m *common.MultiAsset[common.MultiAssetTypeOutput], policyID common.Blake2b224) *common.MultiAsset[common.MultiAssetTypeOutput] {
	names := m.Assets(policyID)
	assetMap := make(map[cbor.ByteString]common.MultiAssetTypeOutput, len(names))
	for _, n := range names {
		assetMap[cbor.NewByteString(n)] = m.Asset(policyID, n)
	}
	data := map[common.Blake2b224]map[cbor.ByteString]common.MultiAssetTypeOutput{policyID: assetMap}
	result := common.NewMultiAsset[common.MultiAssetTypeOutput](data)
	return &result
}

// AddChangeIfNeeded implements spec 4.4.2. Precondition: no fee has been
// explicitly charged against inputsTotal/outputsTotal yet -- the baseline
// fee used for the initial shortage check and for the first change
// output's marginal-fee computation is always queried fresh via
// minFeeForTx, never carried in from a prior call.
//
// inputsTotal and outputsTotal are the transaction's current balance.
// changeAddr receives any leftover value. coinsPerByte/addressBytes/
// maxValueSize parameterize min-ADA and the packer's overflow rule.
// preferPureChange mirrors the identically named config field.
func AddChangeIfNeeded(
	inputsTotal, outputsTotal Value,
	changeAddr common.Address,
	coinsPerByte int64,
	addressBytes int,
	maxValueSize int,
	preferPureChange bool,
	minFeeForTx MinFeeForTxFunc,
) (ChangeResult, error) {
	baseFee, err := minFeeForTx(nil)
	if err != nil {
		return ChangeResult{}, err
	}

	required, err := outputsTotal.Add(NewSimpleValue(baseFee))
	if err != nil {
		return ChangeResult{}, err
	}
	if shortage := computeShortage(required, inputsTotal); shortage.Coin > 0 || shortage.HasAssets() {
		return ChangeResult{}, &ShortageError{Shortage: shortage}
	}

	residualCoin := inputsTotal.Coin - outputsTotal.Coin
	var residualAssets *common.MultiAsset[common.MultiAssetTypeOutput]
	if inputsTotal.Assets != nil {
		residualAssets = CloneMultiAsset(inputsTotal.Assets)
		subtractAssetsSaturating(residualAssets, outputsTotal.Assets)
	}

	if MultiAssetIsEmpty(residualAssets) {
		// Case C: residual is exactly the baseline fee -- no change output.
		if residualCoin == baseFee {
			return ChangeResult{Fee: residualCoin}, nil
		}

		// Case A: pure-ADA residual.
		pureSpec := SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes}
		minAda := MinAda(pureSpec, coinsPerByte)
		if residualCoin < minAda {
			return ChangeResult{Fee: residualCoin}, nil // burn into fee
		}
		changeOut := NewBabbageOutputSimple(changeAddr, 0)
		feeForChange, err := minFeeForTx([]babbage.BabbageTransactionOutput{changeOut})
		if err != nil {
			return ChangeResult{}, err
		}
		if residualCoin < minAda+feeForChange {
			return ChangeResult{Fee: residualCoin}, nil // burn into fee
		}
		changeOut = NewBabbageOutputSimple(changeAddr, residualCoin-feeForChange)
		return ChangeResult{
			Outputs: []babbage.BabbageTransactionOutput{changeOut},
			Fee:     feeForChange,
		}, nil
	}

	// Case B: residual carries assets. Greedily pack one policy at a time;
	// when adding a policy would push the current output's predicted
	// value size past maxValueSize, finalize the current output and open
	// a new one for that policy instead. A single policy that alone
	// exceeds the limit is rejected -- asset names within one policy are
	// never split across outputs.
	var outputs []babbage.BabbageTransactionOutput
	var curAssets *common.MultiAsset[common.MultiAssetTypeOutput]
	newFee := uint64(0)
	remainingCoin := residualCoin

	finalize := func(assets *common.MultiAsset[common.MultiAssetTypeOutput]) error {
		if MultiAssetIsEmpty(assets) {
			return nil
		}
		spec := SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes, Assets: assets}
		minAda := MinAda(spec, coinsPerByte)
		out := NewBabbageOutput(changeAddr, Value{Coin: minAda, Assets: assets}, nil, nil)
		feeWithOut, err := minFeeForTx(append(append([]babbage.BabbageTransactionOutput{}, outputs...), out))
		if err != nil {
			return err
		}
		if remainingCoin < minAda+(feeWithOut-newFee) {
			return fmt.Errorf("%w: not enough ADA to cover non-ADA change", ErrInsufficientInput)
		}
		remainingCoin -= minAda + (feeWithOut - newFee)
		newFee = feeWithOut
		outputs = append(outputs, out)
		return nil
	}

	for _, policyID := range residualAssets.Policies() {
		pm := policyMultiAsset(residualAssets, policyID)

		var candidate *common.MultiAsset[common.MultiAssetTypeOutput]
		if curAssets == nil {
			candidate = pm
		} else {
			candidate = CloneMultiAsset(curAssets)
			candidate.Add(pm)
		}
		candMinAda := MinAda(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes, Assets: candidate}, coinsPerByte)
		candSize := OutputSize(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes, Coin: candMinAda, Assets: candidate})

		if curAssets != nil && candSize > maxValueSize {
			if err := finalize(curAssets); err != nil {
				return ChangeResult{}, err
			}
			curAssets = pm
			pmMinAda := MinAda(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes, Assets: pm}, coinsPerByte)
			if OutputSize(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes, Coin: pmMinAda, Assets: pm}) > maxValueSize {
				return ChangeResult{}, &ValueSizeError{Size: candSize, Max: maxValueSize}
			}
			continue
		}
		if candSize > maxValueSize {
			return ChangeResult{}, &ValueSizeError{Size: candSize, Max: maxValueSize}
		}
		curAssets = candidate
	}
	if curAssets != nil {
		if err := finalize(curAssets); err != nil {
			return ChangeResult{}, err
		}
	}

	if preferPureChange {
		pureMinAda := MinAda(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes}, coinsPerByte)
		pureOut := NewBabbageOutputSimple(changeAddr, 0)
		feeWithPure, err := minFeeForTx(append(append([]babbage.BabbageTransactionOutput{}, outputs...), pureOut))
		if err != nil {
			return ChangeResult{}, err
		}
		marginal := feeWithPure - newFee
		if remainingCoin >= pureMinAda+marginal {
			pureOut = NewBabbageOutputSimple(changeAddr, remainingCoin-marginal)
			outputs = append(outputs, pureOut)
			newFee = feeWithPure
			remainingCoin = 0
		}
	}
	if remainingCoin > 0 && len(outputs) > 0 {
		last := outputs[len(outputs)-1]
		mergedVal, err := ValueFromMaryValue(last.OutputAmount).Add(NewSimpleValue(remainingCoin))
		if err != nil {
			return ChangeResult{}, err
		}
		outputs[len(outputs)-1].OutputAmount = mergedVal.ToMaryValue()
	}

	return ChangeResult{Outputs: outputs, Fee: newFee}, nil
}

// SetCollateralReturnAndTotal implements the first collateral helper of
// spec 4.4.3: total = collateralInputsTotal - output.amount. output must
// carry no assets, and its coin must meet the min-ADA floor.
func SetCollateralReturnAndTotal(
	collateralInputsTotal Value,
	output babbage.BabbageTransactionOutput,
	coinsPerByte int64,
	addressBytes int,
) (uint64, error) {
	outVal := ValueFromMaryValue(output.OutputAmount)
	if outVal.HasAssets() {
		return 0, errors.New("apollo: collateral return output must carry no assets")
	}
	total, err := collateralInputsTotal.Sub(outVal)
	if err != nil {
		return 0, err
	}
	minAda := MinAda(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes}, coinsPerByte)
	if outVal.Coin < minAda {
		return 0, &MinAdaError{Have: outVal.Coin, Need: minAda}
	}
	return total.Coin, nil
}

// SetTotalCollateralAndReturn implements the second collateral helper of
// spec 4.4.3: return = collateralInputsTotal - Value(total). If the
// return would be zero, no output is produced; otherwise it is
// constructed at returnAddr and checked against the min-ADA floor.
func SetTotalCollateralAndReturn(
	collateralInputsTotal Value,
	total uint64,
	returnAddr common.Address,
	coinsPerByte int64,
	addressBytes int,
) (*babbage.BabbageTransactionOutput, error) {
	ret, err := collateralInputsTotal.Sub(NewSimpleValue(total))
	if err != nil {
		return nil, err
	}
	if ret.Coin == 0 && !ret.HasAssets() {
		return nil, nil
	}
	minAda := MinAda(SizeSpec{Format: FormatPostAlonzo, AddressBytes: addressBytes}, coinsPerByte)
	if ret.Coin < minAda {
		return nil, &MinAdaError{Have: ret.Coin, Need: minAda}
	}
	out := NewBabbageOutputSimple(returnAddr, ret.Coin)
	return &out, nil
}
