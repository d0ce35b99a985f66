package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches for workflow transitions
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}
}

func (jg *JournalGenerator) appendEntry(
	batch *Batch,
	debit, credit AccountKey,
	asset common.Address,
	amount int64,
	journalType JournalType,
) {
	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		EventRef:      batch.EventRef,
		Sequence:      batch.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         asset,
		Amount:        amount,
		JournalType:   journalType,
		Timestamp:     batch.Timestamp,
	})
}

// GenerateLiquidityAdd credits the pool with collateral pulled into custody.
// Moves funds: external:custody → pool:available.
// Pre-check: the pool counter must not overflow (fails closed).
func (jg *JournalGenerator) GenerateLiquidityAdd(
	eventRef string,
	asset common.Address,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if _, err := CheckedAdd(jg.balanceTracker.GetPoolAvailable(asset), amount); err != nil {
		return nil, fmt.Errorf("liquidity add pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewPoolAccountKey(asset),
		NewExternalAccountKey(SubTypeExternalCustody, asset),
		asset, amount, JournalTypeLiquidityAdd,
	)
	jg.sequence++
	return batch, nil
}

// GenerateLiquidityRemove returns pool collateral to the administrator.
// Moves funds: pool:available → external:custody.
func (jg *JournalGenerator) GenerateLiquidityRemove(
	eventRef string,
	asset common.Address,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientPool(asset, amount); err != nil {
		return nil, fmt.Errorf("liquidity remove pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewExternalAccountKey(SubTypeExternalCustody, asset),
		NewPoolAccountKey(asset),
		asset, amount, JournalTypeLiquidityRemove,
	)
	jg.sequence++
	return batch, nil
}

// GenerateReservation debits the pool and associates the amount with a record.
// Moves funds: pool:available → owner:reserved.
// Pre-check: sufficient uncommitted liquidity (the engine validates this
// first with a typed error; the check here keeps the generator safe on its own).
func (jg *JournalGenerator) GenerateReservation(
	eventRef string,
	owner, asset common.Address,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientPool(asset, amount); err != nil {
		return nil, fmt.Errorf("reservation pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewOwnerReservedKey(owner, asset),
		NewPoolAccountKey(asset),
		asset, amount, JournalTypeReserve,
	)
	jg.sequence++
	return batch, nil
}

// GenerateReservationRelease credits a record's reservation back to the pool.
// Moves funds: owner:reserved → pool:available. Used by reject and delete.
func (jg *JournalGenerator) GenerateReservationRelease(
	eventRef string,
	owner, asset common.Address,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	reserved := jg.balanceTracker.GetOwnerReserved(owner, asset)
	if reserved < amount {
		return nil, fmt.Errorf("release pre-check failed: reserved=%d, need=%d", reserved, amount)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewPoolAccountKey(asset),
		NewOwnerReservedKey(owner, asset),
		asset, amount, JournalTypeReserveRelease,
	)
	jg.sequence++
	return batch, nil
}

// GenerateReserveTransfer moves a reservation between owner accounts on
// record admin change. The pool counter is untouched.
func (jg *JournalGenerator) GenerateReserveTransfer(
	eventRef string,
	from, to, asset common.Address,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	reserved := jg.balanceTracker.GetOwnerReserved(from, asset)
	if reserved < amount {
		return nil, fmt.Errorf("transfer pre-check failed: reserved=%d, need=%d", reserved, amount)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewOwnerReservedKey(to, asset),
		NewOwnerReservedKey(from, asset),
		asset, amount, JournalTypeReserveTransfer,
	)
	jg.sequence++
	return batch, nil
}

// GenerateReserveAdjust grows or shrinks a record's reservation against the
// pool when the insured amount changes. A zero delta is not a valid batch.
func (jg *JournalGenerator) GenerateReserveAdjust(
	eventRef string,
	owner, asset common.Address,
	oldAmount, newAmount int64,
	timestamp int64,
) (*Batch, error) {
	if newAmount == oldAmount {
		return nil, fmt.Errorf("adjust pre-check failed: amount unchanged (%d)", oldAmount)
	}

	batch := jg.newBatch(eventRef, timestamp)

	if newAmount > oldAmount {
		delta := newAmount - oldAmount
		if err := jg.balanceTracker.ValidateSufficientPool(asset, delta); err != nil {
			return nil, fmt.Errorf("adjust pre-check failed: %w", err)
		}
		jg.appendEntry(batch,
			NewOwnerReservedKey(owner, asset),
			NewPoolAccountKey(asset),
			asset, delta, JournalTypeReserveIncrease,
		)
	} else {
		delta := oldAmount - newAmount
		reserved := jg.balanceTracker.GetOwnerReserved(owner, asset)
		if reserved < delta {
			return nil, fmt.Errorf("adjust pre-check failed: reserved=%d, need=%d", reserved, delta)
		}
		jg.appendEntry(batch,
			NewPoolAccountKey(asset),
			NewOwnerReservedKey(owner, asset),
			asset, delta, JournalTypeReserveDecrease,
		)
	}

	jg.sequence++
	return batch, nil
}

// GeneratePayout realizes a reservation as a claim payout. The amount was
// already removed from pool:available at request time, so the pool counter
// is untouched; the reservation leaves the ledger through the payout boundary.
// Moves funds: owner:reserved → external:payouts.
func (jg *JournalGenerator) GeneratePayout(
	eventRef string,
	owner, asset common.Address,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	reserved := jg.balanceTracker.GetOwnerReserved(owner, asset)
	if reserved < amount {
		return nil, fmt.Errorf("payout pre-check failed: reserved=%d, need=%d", reserved, amount)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewExternalAccountKey(SubTypeExternalPayouts, asset),
		NewOwnerReservedKey(owner, asset),
		asset, amount, JournalTypePayout,
	)
	jg.sequence++
	return batch, nil
}

// GenerateFeePayment records a yearly fee pulled from the payer into custody.
// Moves funds: external:custody → system:fees.
func (jg *JournalGenerator) GenerateFeePayment(
	eventRef string,
	asset common.Address,
	price int64,
	timestamp int64,
) (*Batch, error) {
	if _, err := CheckedAdd(jg.balanceTracker.GetCollectedFees(asset), price); err != nil {
		return nil, fmt.Errorf("fee pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.appendEntry(batch,
		NewSystemFeesKey(asset),
		NewExternalAccountKey(SubTypeExternalCustody, asset),
		asset, price, JournalTypeFeePayment,
	)
	jg.sequence++
	return batch, nil
}

// SetSequence resets the generator sequence (restore path)
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}
