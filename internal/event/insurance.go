package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// InsuranceRequested is emitted when a request reserves pool collateral
type InsuranceRequested struct {
	Owner              common.Address   `json:"owner"`
	ProtocolName       string           `json:"protocol_name"`
	ProtocolWebsite    string           `json:"protocol_website"`
	ContactInformation string           `json:"contact_information"`
	Scope              []common.Address `json:"scope"`
	ChainIDs           []uint64         `json:"chain_ids"`
	Asset              common.Address   `json:"asset"`
	Amount             int64            `json:"amount"`
}

func (e *InsuranceRequested) EventType() EventType { return EventTypeInsuranceRequested }
func (e *InsuranceRequested) EventOwner() *common.Address { return &e.Owner }

// InsuranceApproved carries the auditor-assigned risk scores and pricing
type InsuranceApproved struct {
	Owner       common.Address `json:"owner"`
	Scores      []byte         `json:"scores"`
	YearlyPrice int64          `json:"yearly_price"`
	Deadline    time.Time      `json:"deadline"`
}

func (e *InsuranceApproved) EventType() EventType { return EventTypeInsuranceApproved }
func (e *InsuranceApproved) EventOwner() *common.Address { return &e.Owner }

// InsuranceRejected is emitted when an auditor rejects a request and the
// reservation returns to the pool
type InsuranceRejected struct {
	Owner  common.Address `json:"owner"`
	Asset  common.Address `json:"asset"`
	Amount int64          `json:"amount"`
	Reason string         `json:"reason"`
}

func (e *InsuranceRejected) EventType() EventType { return EventTypeInsuranceRejected }
func (e *InsuranceRejected) EventOwner() *common.Address { return &e.Owner }

type CoverRequested struct {
	Owner common.Address `json:"owner"`
}

func (e *CoverRequested) EventType() EventType { return EventTypeCoverRequested }
func (e *CoverRequested) EventOwner() *common.Address { return &e.Owner }

type CoverApproved struct {
	Owner common.Address `json:"owner"`
}

func (e *CoverApproved) EventType() EventType { return EventTypeCoverApproved }
func (e *CoverApproved) EventOwner() *common.Address { return &e.Owner }

type CoverRejected struct {
	Owner  common.Address `json:"owner"`
	Reason string         `json:"reason"`
}

func (e *CoverRejected) EventType() EventType { return EventTypeCoverRejected }
func (e *CoverRejected) EventOwner() *common.Address { return &e.Owner }

type CoverRejectionAccepted struct {
	Owner common.Address `json:"owner"`
}

func (e *CoverRejectionAccepted) EventType() EventType { return EventTypeCoverRejectionAccepted }
func (e *CoverRejectionAccepted) EventOwner() *common.Address { return &e.Owner }

// FundsUnlocked is the terminal payout: the reservation leaves custody
type FundsUnlocked struct {
	Owner  common.Address `json:"owner"`
	Asset  common.Address `json:"asset"`
	Amount int64          `json:"amount"`
}

func (e *FundsUnlocked) EventType() EventType { return EventTypeFundsUnlocked }
func (e *FundsUnlocked) EventOwner() *common.Address { return &e.Owner }

// InsuranceDeleted is emitted when a record is removed and its reservation
// credited back to the pool
type InsuranceDeleted struct {
	Owner    common.Address `json:"owner"`
	Asset    common.Address `json:"asset"`
	Released int64          `json:"released"`
	Lapsed   bool           `json:"lapsed"`
}

func (e *InsuranceDeleted) EventType() EventType { return EventTypeInsuranceDeleted }
func (e *InsuranceDeleted) EventOwner() *common.Address { return &e.Owner }

// InsuranceFeePaid records a yearly fee payment (third parties may pay)
type InsuranceFeePaid struct {
	Owner       common.Address `json:"owner"`
	Payer       common.Address `json:"payer"`
	Asset       common.Address `json:"asset"`
	Price       int64          `json:"price"`
	NewDeadline time.Time      `json:"new_deadline"`
}

func (e *InsuranceFeePaid) EventType() EventType { return EventTypeInsuranceFeePaid }
func (e *InsuranceFeePaid) EventOwner() *common.Address { return &e.Owner }

type InsuranceAdminChanged struct {
	Owner    common.Address `json:"owner"`
	NewAdmin common.Address `json:"new_admin"`
}

func (e *InsuranceAdminChanged) EventType() EventType { return EventTypeInsuranceAdminChanged }
func (e *InsuranceAdminChanged) EventOwner() *common.Address { return &e.Owner }

type InsuranceAmountChanged struct {
	Owner       common.Address `json:"owner"`
	Asset       common.Address `json:"asset"`
	OldAmount   int64          `json:"old_amount"`
	NewAmount   int64          `json:"new_amount"`
	YearlyPrice int64          `json:"yearly_price"`
}

func (e *InsuranceAmountChanged) EventType() EventType { return EventTypeInsuranceAmountChanged }
func (e *InsuranceAmountChanged) EventOwner() *common.Address { return &e.Owner }
