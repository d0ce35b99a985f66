package custody

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is the asset custody collaborator: a transferFrom-style token
// interface that pulls collateral into the ledger's custody and pays it
// back out. Both calls must fail atomically: a failed transfer leaves
// every balance untouched and aborts the surrounding operation.
type Vault interface {
	// TransferIn pulls amount of asset from the source into custody.
	// Fails if the source lacks balance or allowance.
	TransferIn(asset, from common.Address, amount int64) error

	// TransferOut pays amount of asset from custody to the destination.
	TransferOut(asset, to common.Address, amount int64) error
}

type holding struct {
	asset  common.Address
	holder common.Address
}

// MemoryVault is an in-process Vault backed by token balances and
// allowances, used by local wiring and tests. The ledger itself is the
// custody holder, keyed by the zero address internally.
type MemoryVault struct {
	balances   map[holding]int64
	allowances map[holding]int64
	custody    map[common.Address]int64
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		balances:   make(map[holding]int64),
		allowances: make(map[holding]int64),
		custody:    make(map[common.Address]int64),
	}
}

// Mint credits a holder's token balance (test/bootstrap helper)
func (v *MemoryVault) Mint(asset, holder common.Address, amount int64) {
	v.balances[holding{asset, holder}] += amount
}

// Approve sets the allowance the vault may pull from a holder
func (v *MemoryVault) Approve(asset, holder common.Address, amount int64) {
	v.allowances[holding{asset, holder}] = amount
}

// BalanceOf returns a holder's token balance
func (v *MemoryVault) BalanceOf(asset, holder common.Address) int64 {
	return v.balances[holding{asset, holder}]
}

// CustodyOf returns how much of an asset the vault holds in custody
func (v *MemoryVault) CustodyOf(asset common.Address) int64 {
	return v.custody[asset]
}

func (v *MemoryVault) TransferIn(asset, from common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer in: non-positive amount %d", amount)
	}

	key := holding{asset, from}
	if v.balances[key] < amount {
		return fmt.Errorf("transfer in: %s has insufficient %s balance (have=%d, need=%d)",
			from.Hex(), asset.Hex(), v.balances[key], amount)
	}
	if v.allowances[key] < amount {
		return fmt.Errorf("transfer in: %s allowance for %s too low (have=%d, need=%d)",
			from.Hex(), asset.Hex(), v.allowances[key], amount)
	}

	v.balances[key] -= amount
	v.allowances[key] -= amount
	v.custody[asset] += amount
	return nil
}

func (v *MemoryVault) TransferOut(asset, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer out: non-positive amount %d", amount)
	}
	if v.custody[asset] < amount {
		return fmt.Errorf("transfer out: custody holds %d of %s, need %d",
			v.custody[asset], asset.Hex(), amount)
	}

	v.custody[asset] -= amount
	v.balances[holding{asset, to}] += amount
	return nil
}
