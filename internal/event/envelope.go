package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType discriminator for notification payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeLiquidityAdded
	EventTypeLiquidityRemoved
	EventTypeInsuranceRequested
	EventTypeInsuranceApproved
	EventTypeInsuranceRejected
	EventTypeCoverRequested
	EventTypeCoverApproved
	EventTypeCoverRejected
	EventTypeCoverRejectionAccepted
	EventTypeFundsUnlocked
	EventTypeInsuranceDeleted
	EventTypeInsuranceFeePaid
	EventTypeInsuranceAdminChanged
	EventTypeInsuranceAmountChanged
)

// Envelope wraps every notification in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64 `json:"sequence"`

	// Event type discriminator
	EventType EventType `json:"event_type"`

	// Record owner context (nil for pool-only events)
	Owner *common.Address `json:"owner,omitempty"`

	// Collateral asset context (nil for status-only transitions)
	Asset *common.Address `json:"asset,omitempty"`

	// Observed operation time (an input, not wall-clock at emit)
	Timestamp time.Time `json:"timestamp"`

	// Event-specific payload
	Payload Event `json:"payload"`

	// SHA-256 of ledger state AFTER applying this transition
	StateHash [32]byte `json:"state_hash"`

	// Previous transition's state hash (chain integrity)
	PrevHash [32]byte `json:"prev_hash"`
}

// Event is the interface all notification payloads implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// EventOwner returns the record owner context (nil for pool events)
	EventOwner() *common.Address
}

func (et EventType) String() string {
	switch et {
	case EventTypeLiquidityAdded:
		return "LiquidityAdded"
	case EventTypeLiquidityRemoved:
		return "LiquidityRemoved"
	case EventTypeInsuranceRequested:
		return "InsuranceRequested"
	case EventTypeInsuranceApproved:
		return "InsuranceApproved"
	case EventTypeInsuranceRejected:
		return "InsuranceRejected"
	case EventTypeCoverRequested:
		return "CoverRequested"
	case EventTypeCoverApproved:
		return "CoverApproved"
	case EventTypeCoverRejected:
		return "CoverRejected"
	case EventTypeCoverRejectionAccepted:
		return "CoverRejectionAccepted"
	case EventTypeFundsUnlocked:
		return "FundsUnlocked"
	case EventTypeInsuranceDeleted:
		return "InsuranceDeleted"
	case EventTypeInsuranceFeePaid:
		return "InsuranceFeePaid"
	case EventTypeInsuranceAdminChanged:
		return "InsuranceAdminChanged"
	case EventTypeInsuranceAmountChanged:
		return "InsuranceAmountChanged"
	default:
		return "Unknown"
	}
}

// NewPayload returns an empty payload of the given type, ready for JSON
// decoding during event-log replay
func NewPayload(et EventType) (Event, bool) {
	switch et {
	case EventTypeLiquidityAdded:
		return &LiquidityAdded{}, true
	case EventTypeLiquidityRemoved:
		return &LiquidityRemoved{}, true
	case EventTypeInsuranceRequested:
		return &InsuranceRequested{}, true
	case EventTypeInsuranceApproved:
		return &InsuranceApproved{}, true
	case EventTypeInsuranceRejected:
		return &InsuranceRejected{}, true
	case EventTypeCoverRequested:
		return &CoverRequested{}, true
	case EventTypeCoverApproved:
		return &CoverApproved{}, true
	case EventTypeCoverRejected:
		return &CoverRejected{}, true
	case EventTypeCoverRejectionAccepted:
		return &CoverRejectionAccepted{}, true
	case EventTypeFundsUnlocked:
		return &FundsUnlocked{}, true
	case EventTypeInsuranceDeleted:
		return &InsuranceDeleted{}, true
	case EventTypeInsuranceFeePaid:
		return &InsuranceFeePaid{}, true
	case EventTypeInsuranceAdminChanged:
		return &InsuranceAdminChanged{}, true
	case EventTypeInsuranceAmountChanged:
		return &InsuranceAmountChanged{}, true
	default:
		return nil, false
	}
}

// ParseEventType inverts String for envelope restore from the event log
func ParseEventType(s string) EventType {
	switch s {
	case "LiquidityAdded":
		return EventTypeLiquidityAdded
	case "LiquidityRemoved":
		return EventTypeLiquidityRemoved
	case "InsuranceRequested":
		return EventTypeInsuranceRequested
	case "InsuranceApproved":
		return EventTypeInsuranceApproved
	case "InsuranceRejected":
		return EventTypeInsuranceRejected
	case "CoverRequested":
		return EventTypeCoverRequested
	case "CoverApproved":
		return EventTypeCoverApproved
	case "CoverRejected":
		return EventTypeCoverRejected
	case "CoverRejectionAccepted":
		return EventTypeCoverRejectionAccepted
	case "FundsUnlocked":
		return EventTypeFundsUnlocked
	case "InsuranceDeleted":
		return EventTypeInsuranceDeleted
	case "InsuranceFeePaid":
		return EventTypeInsuranceFeePaid
	case "InsuranceAdminChanged":
		return EventTypeInsuranceAdminChanged
	case "InsuranceAmountChanged":
		return EventTypeInsuranceAmountChanged
	default:
		return EventTypeUnknown
	}
}
