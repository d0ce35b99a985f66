package engine

import (
	"errors"
	"fmt"
	"time"

	"CoverLedger/internal/insurance"

	"github.com/ethereum/go-ethereum/common"
)

// Every failure is a precondition violation surfaced synchronously as a
// typed, parameterized error. Nothing is retried internally and nothing is
// clamped; the caller resubmits with corrected arguments.

// ErrEmptyScope rejects requests covering no contracts
var ErrEmptyScope = errors.New("empty scope")

// ErrEmptyContactInformation rejects requests with no way to reach the protocol
var ErrEmptyContactInformation = errors.New("empty contact information")

// ZeroAmountError rejects a zero insurance amount for an asset
type ZeroAmountError struct {
	Asset common.Address
}

func (e *ZeroAmountError) Error() string {
	return fmt.Sprintf("zero insurance amount for asset %s", e.Asset.Hex())
}

// SentinelAssetError rejects the reserved zero asset address
type SentinelAssetError struct{}

func (e *SentinelAssetError) Error() string {
	return "asset is the reserved sentinel address"
}

// SentinelAddressError rejects the reserved zero address where a real
// address is required. Field names the rejected parameter.
type SentinelAddressError struct {
	Field string
}

func (e *SentinelAddressError) Error() string {
	return fmt.Sprintf("%s is the reserved sentinel address", e.Field)
}

// SizeMismatchError reports positionally misaligned scope/chainIds sequences
type SizeMismatchError struct {
	ScopeLen    int
	ChainIDsLen int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("scope/chainId size mismatch: scope=%d, chainIds=%d", e.ScopeLen, e.ChainIDsLen)
}

// ScoreMismatchError reports risk scores that do not align with the scope
type ScoreMismatchError struct {
	ScopeLen  int
	ScoresLen int
}

func (e *ScoreMismatchError) Error() string {
	return fmt.Sprintf("scope/score size mismatch: scope=%d, scores=%d", e.ScopeLen, e.ScoresLen)
}

// InsufficientLiquidityError reports a request the pool cannot back
type InsufficientLiquidityError struct {
	Requested int64
	Available int64
	Asset     common.Address
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("amount greater than available: requested=%d, available=%d, asset=%s",
		e.Requested, e.Available, e.Asset.Hex())
}

// AmountExceedsBackingError rejects an amount change the pool cannot back
type AmountExceedsBackingError struct {
	Requested int64
	Max       int64
	Asset     common.Address
}

func (e *AmountExceedsBackingError) Error() string {
	return fmt.Sprintf("new amount exceeds backing: requested=%d, max=%d, asset=%s",
		e.Requested, e.Max, e.Asset.Hex())
}

// PriceOverflowError rejects an amount change whose proportional yearly
// price rescale would overflow int64
type PriceOverflowError struct {
	Owner       common.Address
	YearlyPrice int64
	NewAmount   int64
}

func (e *PriceOverflowError) Error() string {
	return fmt.Sprintf("yearly price rescale overflows: price=%d, new amount=%d, owner=%s",
		e.YearlyPrice, e.NewAmount, e.Owner.Hex())
}

// AlreadyRequestedError reports that the owner already holds an active record
type AlreadyRequestedError struct {
	Owner common.Address
}

func (e *AlreadyRequestedError) Error() string {
	return fmt.Sprintf("insurance already requested by %s", e.Owner.Hex())
}

// NotRequestedError reports that no record exists for the owner
type NotRequestedError struct {
	Owner common.Address
}

func (e *NotRequestedError) Error() string {
	return fmt.Sprintf("no insurance requested by %s", e.Owner.Hex())
}

// AlreadyApprovedError reports a second approval of the same record
type AlreadyApprovedError struct {
	Owner common.Address
}

func (e *AlreadyApprovedError) Error() string {
	return fmt.Sprintf("insurance for %s already approved", e.Owner.Hex())
}

// InvalidStatusError reports an operation applied in the wrong lifecycle state
type InvalidStatusError struct {
	Owner     common.Address
	Status    insurance.Status
	Operation string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("%s: record for %s is %s", e.Operation, e.Owner.Hex(), e.Status)
}

// UnauthorizedError reports a missing role or admin gate
type UnauthorizedError struct {
	Caller common.Address
	Need   string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("caller %s lacks %s", e.Caller.Hex(), e.Need)
}

// PaymentNotDueError reports a fee payment before the payment window opens
type PaymentNotDueError struct {
	Owner    common.Address
	Deadline time.Time
}

func (e *PaymentNotDueError) Error() string {
	return fmt.Sprintf("payment for %s not due until window before %s",
		e.Owner.Hex(), e.Deadline.Format(time.RFC3339))
}

// LapsedError reports an operation on coverage past its payment deadline
type LapsedError struct {
	Owner    common.Address
	Deadline time.Time
}

func (e *LapsedError) Error() string {
	return fmt.Sprintf("insurance for %s lapsed at %s", e.Owner.Hex(), e.Deadline.Format(time.RFC3339))
}
