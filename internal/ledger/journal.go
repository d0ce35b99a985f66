package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeLiquidityAdd JournalType = iota
	JournalTypeLiquidityRemove
	JournalTypeReserve
	JournalTypeReserveRelease
	JournalTypeReserveTransfer
	JournalTypeReserveIncrease
	JournalTypeReserveDecrease
	JournalTypePayout
	JournalTypeFeePayment
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeLiquidityAdd:
		return "liquidity_add"
	case JournalTypeLiquidityRemove:
		return "liquidity_remove"
	case JournalTypeReserve:
		return "reserve"
	case JournalTypeReserveRelease:
		return "reserve_release"
	case JournalTypeReserveTransfer:
		return "reserve_transfer"
	case JournalTypeReserveIncrease:
		return "reserve_increase"
	case JournalTypeReserveDecrease:
		return "reserve_decrease"
	case JournalTypePayout:
		return "payout"
	case JournalTypeFeePayment:
		return "fee_payment"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID      // Unique identifier
	BatchID       uuid.UUID      // Groups entries of one transition
	EventRef      string         // Operation reference (event type + owner/asset)
	Sequence      int64          // Global transition sequence
	DebitAccount  AccountKey     // Account receiving debit (balance increases)
	CreditAccount AccountKey     // Account receiving credit (balance decreases)
	Asset         common.Address // Collateral asset being moved
	Amount        int64          // Base units (ALWAYS positive)
	JournalType   JournalType    // Entry type
	Timestamp     int64          // Observed operation time (epoch microseconds)
}

// Batch represents a balanced set of journal entries for one transition
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed.
// Each journal entry is a balanced transfer by construction: a single positive
// amount moves from credit account to debit account, so Σ debits == Σ credits
// is guaranteed per-entry. Multi-leg transitions use multiple entries under
// one batch_id, each individually balanced.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		// No self-transfers
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}

		if j.DebitAccount.Asset != j.Asset || j.CreditAccount.Asset != j.Asset {
			return fmt.Errorf("journal %s crosses assets", j.JournalID)
		}
	}

	return nil
}
