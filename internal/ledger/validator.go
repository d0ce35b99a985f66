package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies the batch is balanced and well-formed
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidatePoolNonNegative checks the uncommitted counter never goes negative
func (v *InvariantValidator) ValidatePoolNonNegative(asset common.Address) error {
	balance := v.tracker.GetPoolAvailable(asset)
	if balance < 0 {
		return fmt.Errorf("pool for %s has negative available liquidity: %d", asset.Hex(), balance)
	}
	return nil
}

// ValidateReservedNonNegative checks an owner's reservation is >= 0
func (v *InvariantValidator) ValidateReservedNonNegative(owner, asset common.Address) error {
	return v.tracker.ValidateNonNegative(NewOwnerReservedKey(owner, asset))
}

// ValidateGlobalBalance verifies the ledger is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for asset, total := range totals {
		if total != 0 {
			return fmt.Errorf("global balance for %s is non-zero: %d", asset.Hex(), total)
		}
	}

	return nil
}

// ValidateReservedMatches cross-checks the ledger against the registry:
// the sum of owner reservations for an asset must equal the sum of insured
// amounts of live records for that asset.
func (v *InvariantValidator) ValidateReservedMatches(asset common.Address, recordTotal int64) error {
	reserved := v.tracker.ReservedTotal(asset)
	if reserved != recordTotal {
		return fmt.Errorf("reserved/record mismatch for %s: ledger=%d, registry=%d",
			asset.Hex(), reserved, recordTotal)
	}
	return nil
}
