package apollo

// minAdaOverheadBytes is the ledger's fixed per-UTxO-entry overhead added to
// an output's predicted CBOR size before multiplying by coinsPerByte. It
// folds in the entry's TransactionInput (txHash+index) and the bookkeeping
// the UTxO set itself carries per entry.
const minAdaOverheadBytes = 160

// minAdaMaxIterations bounds the fixed-point loop below. Each round either
// converges or grows the coin's own integer-size tier (1/2/3/5/9 bytes),
// so five rounds always suffice to reach a fixed point.
const minAdaMaxIterations = 5

// MinAda computes the minimum coin a ledger will accept for an output
// shaped like spec, given the protocol's coinsPerByte data cost. Because an
// output's CBOR size depends on its coin (larger coins take more bytes),
// and the minimum coin depends on the size, this runs the fixed-point
// iteration described in the spec: start at coin=0, compute the candidate
// minimum, re-measure with that candidate in place, and repeat until the
// candidate stops changing.
//
// spec.Coin is overwritten on each iteration; callers should not rely on it
// after calling MinAda. The Datum/ScriptRef fields of spec are honoured as
// given, letting a caller probe "what would min-ADA be if this output also
// carried a script ref" without constructing the real output.
func MinAda(spec SizeSpec, coinsPerByte int64) uint64 {
	if coinsPerByte <= 0 {
		return 0
	}
	coin := uint64(0)
	for range minAdaMaxIterations {
		spec.Coin = coin
		size := OutputSize(spec)
		candidate := uint64(coinsPerByte) * uint64(size+minAdaOverheadBytes) //nolint:gosec // size+overhead is always small and non-negative
		if candidate == coin {
			return coin
		}
		coin = candidate
	}
	return coin
}

// MeetsMinAda reports whether coin satisfies MinAda for the given spec,
// i.e. whether placing coin on that output passes the ledger's
// UTxO-entry-size rule. spec.Coin is ignored; the candidate coin is taken
// from the coin parameter.
func MeetsMinAda(coin uint64, spec SizeSpec, coinsPerByte int64) bool {
	return coin >= MinAda(spec, coinsPerByte)
}
