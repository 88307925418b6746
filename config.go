package apollo

import "fmt"

// FeeAlgo is the linear fee formula fee = A*size + B, per spec 4.3.
type FeeAlgo struct {
	A int64
	B int64
}

// TransactionBuilderConfig holds the protocol parameters the builder needs
// to run coin selection, change synthesis, and fee estimation without
// reaching back into a ChainContext on every call. It is immutable once
// built; construct it with NewConfigBuilder().
type TransactionBuilderConfig struct {
	FeeAlgo               FeeAlgo
	PoolDeposit           uint64
	KeyDeposit            uint64
	MaxValueSize          int
	MaxTxSize             int
	CoinsPerUtxoByte      int64 // "dataCost" in spec terms
	ExUnitPriceMem        float64
	ExUnitPriceStep       float64
	PreferPureChange      bool
	RefScriptCoinsPerByte int64
}

// configBuilder assembles a TransactionBuilderConfig, tracking which of the
// seven required fields have been set so Build can report MissingConfig
// precisely, the way the teacher's fluent builders validate before freezing.
type configBuilder struct {
	cfg TransactionBuilderConfig

	haveFeeAlgo          bool
	havePoolDeposit      bool
	haveKeyDeposit       bool
	haveMaxValueSize     bool
	haveMaxTxSize        bool
	haveCoinsPerUtxoByte bool
}

// NewConfigBuilder starts a TransactionBuilderConfig builder.
func NewConfigBuilder() *configBuilder { //nolint:revive // mirrors the package's unexported-builder convention
	return &configBuilder{}
}

func (b *configBuilder) FeeAlgo(a, cConst int64) *configBuilder {
	b.cfg.FeeAlgo = FeeAlgo{A: a, B: cConst}
	b.haveFeeAlgo = true
	return b
}

func (b *configBuilder) PoolDeposit(v uint64) *configBuilder {
	b.cfg.PoolDeposit = v
	b.havePoolDeposit = true
	return b
}

func (b *configBuilder) KeyDeposit(v uint64) *configBuilder {
	b.cfg.KeyDeposit = v
	b.haveKeyDeposit = true
	return b
}

func (b *configBuilder) MaxValueSize(v int) *configBuilder {
	b.cfg.MaxValueSize = v
	b.haveMaxValueSize = true
	return b
}

func (b *configBuilder) MaxTxSize(v int) *configBuilder {
	b.cfg.MaxTxSize = v
	b.haveMaxTxSize = true
	return b
}

func (b *configBuilder) CoinsPerUtxoByte(v int64) *configBuilder {
	b.cfg.CoinsPerUtxoByte = v
	b.haveCoinsPerUtxoByte = true
	return b
}

func (b *configBuilder) ExUnitPrices(mem, step float64) *configBuilder {
	b.cfg.ExUnitPriceMem = mem
	b.cfg.ExUnitPriceStep = step
	return b
}

func (b *configBuilder) PreferPureChange(v bool) *configBuilder {
	b.cfg.PreferPureChange = v
	return b
}

func (b *configBuilder) RefScriptCoinsPerByte(v int64) *configBuilder {
	b.cfg.RefScriptCoinsPerByte = v
	return b
}

// Build validates that all required fields were supplied and returns the
// immutable config, or ErrMissingConfig naming the first field missing.
func (b *configBuilder) Build() (TransactionBuilderConfig, error) {
	switch {
	case !b.haveFeeAlgo:
		return TransactionBuilderConfig{}, fmt.Errorf("%w: feeAlgo", ErrMissingConfig)
	case !b.havePoolDeposit:
		return TransactionBuilderConfig{}, fmt.Errorf("%w: poolDeposit", ErrMissingConfig)
	case !b.haveKeyDeposit:
		return TransactionBuilderConfig{}, fmt.Errorf("%w: keyDeposit", ErrMissingConfig)
	case !b.haveMaxValueSize:
		return TransactionBuilderConfig{}, fmt.Errorf("%w: maxValueSize", ErrMissingConfig)
	case !b.haveMaxTxSize:
		return TransactionBuilderConfig{}, fmt.Errorf("%w: maxTxSize", ErrMissingConfig)
	case !b.haveCoinsPerUtxoByte:
		return TransactionBuilderConfig{}, fmt.Errorf("%w: dataCost (coinsPerUtxoByte)", ErrMissingConfig)
	}
	return b.cfg, nil
}

// ConfigFromProtocolParameters derives a TransactionBuilderConfig from the
// backend package's ProtocolParameters, the shape every ChainContext
// implementation in backend/ already returns.
func ConfigFromProtocolParameters(pp interface {
	CoinsPerUtxoByteValue() int64
}, minFeeA, minFeeB int64, poolDeposit, keyDeposit uint64, maxValueSize, maxTxSize int) (TransactionBuilderConfig, error) {
	return NewConfigBuilder().
		FeeAlgo(minFeeA, minFeeB).
		PoolDeposit(poolDeposit).
		KeyDeposit(keyDeposit).
		MaxValueSize(maxValueSize).
		MaxTxSize(maxTxSize).
		CoinsPerUtxoByte(pp.CoinsPerUtxoByteValue()).
		Build()
}
