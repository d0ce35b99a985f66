package engine

import (
	"fmt"

	"CoverLedger/internal/event"
	"CoverLedger/internal/insurance"
	"CoverLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
)

// ReplayEntry is one logged transition read back from the event store:
// the envelope plus the journal rows committed with it.
type ReplayEntry struct {
	Envelope *event.Envelope
	Journals []ledger.Journal
}

// Restore rebuilds engine state by replaying the event log in sequence
// order. Journal rows re-apply to the balance tracker; envelope payloads
// fold into the registry. The chain tip and sequence resume from the last
// entry, so hashes produced after restart extend the same chain.
func (e *WorkflowEngine) Restore(entries []ReplayEntry) error {
	for _, entry := range entries {
		env := entry.Envelope
		if env.Sequence != e.sequence {
			return fmt.Errorf("replay gap: expected sequence %d, got %d", e.sequence, env.Sequence)
		}

		for _, j := range entry.Journals {
			if err := e.tracker.ApplyJournal(j); err != nil {
				return fmt.Errorf("replay journal seq=%d: %w", env.Sequence, err)
			}
		}

		if err := e.foldEvent(env); err != nil {
			return fmt.Errorf("replay event seq=%d type=%s: %w", env.Sequence, env.EventType, err)
		}

		e.hasher.SetPrevHash(env.StateHash)
		e.sequence = env.Sequence + 1
	}

	e.journalGen.SetSequence(e.sequence)

	if err := e.validator.ValidateGlobalBalance(); err != nil {
		return fmt.Errorf("replay left ledger unbalanced: %w", err)
	}
	return nil
}

// foldEvent applies one logged payload's registry effect. Ledger movement
// comes from the journal rows; only record state is rebuilt here.
func (e *WorkflowEngine) foldEvent(env *event.Envelope) error {
	switch p := env.Payload.(type) {
	case *event.LiquidityAdded, *event.LiquidityRemoved:
		// Ledger-only transitions

	case *event.InsuranceRequested:
		e.registry.Put(&insurance.Insurance{
			Owner:              p.Owner,
			ProtocolName:       p.ProtocolName,
			ProtocolWebsite:    p.ProtocolWebsite,
			ContactInformation: p.ContactInformation,
			Scope:              p.Scope,
			ChainIDs:           p.ChainIDs,
			Token:              insurance.InsuranceToken{Amount: p.Amount, Asset: p.Asset},
			Status:             insurance.StatusRequested,
		})

	case *event.InsuranceApproved:
		rec := e.registry.Get(p.Owner)
		if rec == nil {
			return fmt.Errorf("no record for owner %s", p.Owner.Hex())
		}
		rec.Scores = p.Scores
		rec.Payment = insurance.InsurancePayment{YearlyPrice: p.YearlyPrice, Deadline: p.Deadline}
		rec.Status = insurance.StatusApproved
		rec.Version++

	case *event.InsuranceRejected:
		e.registry.Remove(p.Owner)

	case *event.CoverRequested:
		if err := e.foldStatus(p.Owner, insurance.StatusCoverRequested); err != nil {
			return err
		}

	case *event.CoverApproved:
		if err := e.foldStatus(p.Owner, insurance.StatusCoverApproved); err != nil {
			return err
		}

	case *event.CoverRejected:
		if err := e.foldStatus(p.Owner, insurance.StatusCoverRejected); err != nil {
			return err
		}

	case *event.CoverRejectionAccepted:
		if err := e.foldStatus(p.Owner, insurance.StatusApproved); err != nil {
			return err
		}

	case *event.FundsUnlocked:
		e.registry.Remove(p.Owner)

	case *event.InsuranceDeleted:
		e.registry.Remove(p.Owner)

	case *event.InsuranceFeePaid:
		rec := e.registry.Get(p.Owner)
		if rec == nil {
			return fmt.Errorf("no record for owner %s", p.Owner.Hex())
		}
		rec.Payment.Deadline = p.NewDeadline
		rec.Version++

	case *event.InsuranceAdminChanged:
		e.registry.Rekey(p.Owner, p.NewAdmin)

	case *event.InsuranceAmountChanged:
		rec := e.registry.Get(p.Owner)
		if rec == nil {
			return fmt.Errorf("no record for owner %s", p.Owner.Hex())
		}
		rec.Token.Amount = p.NewAmount
		rec.Payment.YearlyPrice = p.YearlyPrice
		rec.Version++

	default:
		return fmt.Errorf("unknown payload type %T", env.Payload)
	}
	return nil
}

func (e *WorkflowEngine) foldStatus(owner common.Address, status insurance.Status) error {
	rec := e.registry.Get(owner)
	if rec == nil {
		return fmt.Errorf("no record for owner %s", owner.Hex())
	}
	rec.Status = status
	rec.Version++
	return nil
}
