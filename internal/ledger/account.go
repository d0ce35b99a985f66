package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	// AccountScopePool holds uncommitted collateral per asset
	AccountScopePool AccountScope = iota
	// AccountScopeOwner holds collateral reserved against one owner's record
	AccountScopeOwner
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Pool sub-types
	SubTypePoolAvailable AccountSubType = iota

	// Owner sub-types
	SubTypeOwnerReserved

	// System sub-types
	SubTypeSystemFees

	// External sub-types
	SubTypeExternalCustody
	SubTypeExternalPayouts
)

// AccountKey is the in-memory key for balance tracking.
// Entity is the record owner for owner-scope accounts, zero otherwise.
// Asset is the collateral token contract address.
type AccountKey struct {
	Scope   AccountScope
	Entity  common.Address
	SubType AccountSubType
	Asset   common.Address
}

// NewPoolAccountKey creates the uncommitted-liquidity account for an asset
func NewPoolAccountKey(asset common.Address) AccountKey {
	return AccountKey{
		Scope:   AccountScopePool,
		SubType: SubTypePoolAvailable,
		Asset:   asset,
	}
}

// NewOwnerReservedKey creates the reserved-collateral account for a record owner
func NewOwnerReservedKey(owner, asset common.Address) AccountKey {
	return AccountKey{
		Scope:   AccountScopeOwner,
		Entity:  owner,
		SubType: SubTypeOwnerReserved,
		Asset:   asset,
	}
}

// NewSystemFeesKey creates the collected-fees account for an asset
func NewSystemFeesKey(asset common.Address) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: SubTypeSystemFees,
		Asset:   asset,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, asset common.Address) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		Asset:   asset,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopePool:
		return fmt.Sprintf("pool:%s:%s", k.subTypeName(), k.Asset.Hex())
	case AccountScopeOwner:
		return fmt.Sprintf("owner:%s:%s:%s", k.Entity.Hex(), k.subTypeName(), k.Asset.Hex())
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), k.Asset.Hex())
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), k.Asset.Hex())
	}
	return "unknown"
}

// ParseAccountPath inverts AccountPath for event-log replay
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	switch {
	case len(parts) == 3 && parts[0] == "pool" && parts[1] == "available":
		return NewPoolAccountKey(common.HexToAddress(parts[2])), nil
	case len(parts) == 4 && parts[0] == "owner" && parts[2] == "reserved":
		return NewOwnerReservedKey(common.HexToAddress(parts[1]), common.HexToAddress(parts[3])), nil
	case len(parts) == 3 && parts[0] == "system" && parts[1] == "fees":
		return NewSystemFeesKey(common.HexToAddress(parts[2])), nil
	case len(parts) == 3 && parts[0] == "external" && parts[1] == "custody":
		return NewExternalAccountKey(SubTypeExternalCustody, common.HexToAddress(parts[2])), nil
	case len(parts) == 3 && parts[0] == "external" && parts[1] == "payouts":
		return NewExternalAccountKey(SubTypeExternalPayouts, common.HexToAddress(parts[2])), nil
	}
	return AccountKey{}, fmt.Errorf("unparseable account path %q", path)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypePoolAvailable:
		return "available"
	case SubTypeOwnerReserved:
		return "reserved"
	case SubTypeSystemFees:
		return "fees"
	case SubTypeExternalCustody:
		return "custody"
	case SubTypeExternalPayouts:
		return "payouts"
	default:
		return "unknown"
	}
}
