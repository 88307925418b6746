package apollo

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers distinguish failure categories with errors.Is,
// or errors.As against the richer *ShortageError / *ValueSizeError types below.
var (
	// ErrInsufficientInput means the selected/available inputs cannot cover
	// outputs + fee + deposits.
	ErrInsufficientInput = errors.New("apollo: insufficient input")

	// ErrValueTooLarge means an output's amount CBOR would exceed maxValueSize.
	ErrValueTooLarge = errors.New("apollo: value too large")

	// ErrTxTooLarge means the built transaction exceeds maxTxSize.
	ErrTxTooLarge = errors.New("apollo: transaction too large")

	// ErrBelowMinAda means an output's coin is below the computed min-ADA floor.
	ErrBelowMinAda = errors.New("apollo: output below minimum ADA")

	// ErrMissingConfig means a required protocol parameter was not supplied
	// to the TransactionBuilderConfig.
	ErrMissingConfig = errors.New("apollo: missing required config field")

	// ErrMissingWitness means a mint policy, certificate, withdrawal, vote, or
	// Plutus input lacks a matching script or redeemer.
	ErrMissingWitness = errors.New("apollo: missing witness")

	// ErrArithmeticOverflow means coin or integer arithmetic overflowed a
	// 64-bit bound.
	ErrArithmeticOverflow = errors.New("apollo: arithmetic overflow")
)

// ShortageError reports InsufficientInput with a per-asset breakdown of what
// is still missing. Coin and Assets mirror the Value shape so callers can
// report the shortfall the same way they'd report a Value.
type ShortageError struct {
	Shortage Value
}

func (e *ShortageError) Error() string {
	if e.Shortage.HasAssets() {
		return fmt.Sprintf("apollo: insufficient input: short %d lovelace plus native assets", e.Shortage.Coin)
	}
	return fmt.Sprintf("apollo: insufficient input: short %d lovelace", e.Shortage.Coin)
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientInput }

// ValueSizeError reports ValueTooLarge with the offending size and limit.
type ValueSizeError struct {
	Size int
	Max  int
}

func (e *ValueSizeError) Error() string {
	return fmt.Sprintf("apollo: value CBOR size %d exceeds max %d", e.Size, e.Max)
}

func (e *ValueSizeError) Unwrap() error { return ErrValueTooLarge }

// MinAdaError reports BelowMinAda with the actual and required coin.
type MinAdaError struct {
	Have uint64
	Need uint64
}

func (e *MinAdaError) Error() string {
	return fmt.Sprintf("apollo: output carries %d lovelace, needs at least %d", e.Have, e.Need)
}

func (e *MinAdaError) Unwrap() error { return ErrBelowMinAda }

// DecodeError annotates a CBOR decode failure with the path at which it
// occurred (e.g. "AuxiliaryData -> plutus_scripts_v2 -> entry[3]"). This
// module never constructs one itself -- CBOR decoding of wire types is
// handled by gouroboros -- but it is exposed so callers decoding with
// gouroboros can report a uniform error shape alongside the other kinds.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("apollo: decode error at %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
