package ledger

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceTracker maintains in-memory account balances.
// Not thread-safe, only accessed from the single-threaded workflow engine.
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// CheckedAdd fails closed on int64 overflow instead of wrapping
func CheckedAdd(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fmt.Errorf("int64 overflow: %d + %d", a, b)
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, fmt.Errorf("int64 underflow: %d + %d", a, b)
	}
	return a + b, nil
}

// CheckedMul fails closed on int64 overflow instead of wrapping
func CheckedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a == math.MinInt64 || b == math.MinInt64 {
		return 0, fmt.Errorf("int64 overflow: %d * %d", a, b)
	}
	p := a * b
	if p/b != a {
		return 0, fmt.Errorf("int64 overflow: %d * %d", a, b)
	}
	return p, nil
}

// ApplyJournal applies a single journal entry to balances.
// Overflow on either leg fails the whole entry with no effect.
func (bt *BalanceTracker) ApplyJournal(j Journal) error {
	debited, err := CheckedAdd(bt.balances[j.DebitAccount], j.Amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", j.DebitAccount.AccountPath(), err)
	}
	credited, err := CheckedAdd(bt.balances[j.CreditAccount], -j.Amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", j.CreditAccount.AccountPath(), err)
	}

	bt.balances[j.DebitAccount] = debited
	bt.balances[j.CreditAccount] = credited
	return nil
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for i, j := range batch.Journals {
		if err := bt.ApplyJournal(j); err != nil {
			// Roll back already-applied entries so a failed batch has no effect
			for k := i - 1; k >= 0; k-- {
				applied := batch.Journals[k]
				bt.balances[applied.DebitAccount] -= applied.Amount
				bt.balances[applied.CreditAccount] += applied.Amount
			}
			return err
		}
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// GetPoolAvailable returns the uncommitted liquidity for an asset; zero if unseen
func (bt *BalanceTracker) GetPoolAvailable(asset common.Address) int64 {
	return bt.GetBalance(NewPoolAccountKey(asset))
}

// GetOwnerReserved returns the collateral reserved for an owner's record
func (bt *BalanceTracker) GetOwnerReserved(owner, asset common.Address) int64 {
	return bt.GetBalance(NewOwnerReservedKey(owner, asset))
}

// GetCollectedFees returns accumulated fee payments for an asset
func (bt *BalanceTracker) GetCollectedFees(asset common.Address) int64 {
	return bt.GetBalance(NewSystemFeesKey(asset))
}

// ValidateSufficientPool checks the pool can back a reservation of the given amount
func (bt *BalanceTracker) ValidateSufficientPool(asset common.Address, required int64) error {
	available := bt.GetPoolAvailable(asset)
	if available < required {
		return fmt.Errorf("insufficient pool liquidity: have=%d, need=%d", available, required)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per asset
// (should be 0 for every asset in a zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[common.Address]int64 {
	totals := make(map[common.Address]int64)

	for key, balance := range bt.balances {
		totals[key.Asset] += balance
	}

	return totals
}

// ReservedTotal sums owner-reserved balances for an asset across all owners
func (bt *BalanceTracker) ReservedTotal(asset common.Address) int64 {
	var total int64
	for key, balance := range bt.balances {
		if key.Scope == AccountScopeOwner && key.SubType == SubTypeOwnerReserved && key.Asset == asset {
			total += balance
		}
	}
	return total
}

// Snapshot returns a copy of all balances
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}

// SetBalance overwrites an account balance (restore path only)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}
