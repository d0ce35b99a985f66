package insurance

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// InsuranceToken identifies the collateral asset and quantity a record reserves.
// A zero Asset address means "no insurance exists": the zero address is
// reserved as the sentinel and is never a valid collateral token.
type InsuranceToken struct {
	Amount int64          `json:"amount"`
	Asset  common.Address `json:"asset"`
}

// InsurancePayment holds the yearly price and the next payment due date.
// Zero/zero denotes "not yet priced" (pre-approval).
type InsurancePayment struct {
	YearlyPrice int64     `json:"yearly_price"`
	Deadline    time.Time `json:"deadline"`
}

// Insurance is one owner's coverage record. Scope, Scores and ChainIDs are
// positionally aligned: index i of each describes the same covered contract.
// Scores is empty until approval assigns per-contract risk scores.
type Insurance struct {
	Owner              common.Address   `json:"owner"`
	ProtocolName       string           `json:"protocol_name"`
	ProtocolWebsite    string           `json:"protocol_website"`
	ContactInformation string           `json:"contact_information"`
	Scope              []common.Address `json:"scope"`
	Scores             []byte           `json:"scores"`
	ChainIDs           []uint64         `json:"chain_ids"`
	Token              InsuranceToken   `json:"token"`
	Payment            InsurancePayment `json:"payment"`
	Status             Status           `json:"status"`
	Version            int64            `json:"version"`
}

// Exists reports whether the record represents live coverage
// (sentinel test per the data model).
func (r *Insurance) Exists() bool {
	return r.Token.Asset != (common.Address{})
}

// Lapsed reports whether coverage has expired: the payment deadline is set
// and the observed time is past it. Evaluated lazily, only when an
// operation is invoked, never by a background timer.
func (r *Insurance) Lapsed(now time.Time) bool {
	return !r.Payment.Deadline.IsZero() && now.After(r.Payment.Deadline)
}

// PaymentDue reports whether the record is in the pending-payment sub-state:
// approved coverage whose deadline is within the payment window but not past.
func (r *Insurance) PaymentDue(now time.Time, window time.Duration) bool {
	if r.Payment.Deadline.IsZero() || r.Lapsed(now) {
		return false
	}
	return !now.Before(r.Payment.Deadline.Add(-window))
}

// Clone returns a deep copy so registry reads cannot alias engine-owned state
func (r *Insurance) Clone() Insurance {
	out := *r
	out.Scope = append([]common.Address(nil), r.Scope...)
	out.Scores = append([]byte(nil), r.Scores...)
	out.ChainIDs = append([]uint64(nil), r.ChainIDs...)
	return out
}
