package engine

import (
	"fmt"
	"sort"
	"time"

	"CoverLedger/internal/access"
	"CoverLedger/internal/custody"
	"CoverLedger/internal/event"
	"CoverLedger/internal/insurance"
	"CoverLedger/internal/ledger"
	"CoverLedger/internal/observability"

	"github.com/ethereum/go-ethereum/common"
)

// Output is one committed transition: the notification envelope plus the
// journal batch that moved collateral (nil batch for status-only transitions).
type Output struct {
	Envelope *event.Envelope
	Batch    *ledger.Batch
}

// Config holds the engine's time parameters
type Config struct {
	// PaymentPeriod is how far each fee payment advances the deadline
	PaymentPeriod time.Duration
	// PaymentWindow is how long before the deadline a fee becomes payable
	PaymentWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		PaymentPeriod: 365 * 24 * time.Hour,
		PaymentWindow: 30 * 24 * time.Hour,
	}
}

// InsuranceRequest is the caller-supplied shape of a new coverage request
type InsuranceRequest struct {
	ProtocolName       string
	ProtocolWebsite    string
	ContactInformation string
	Token              insurance.InsuranceToken
	Scope              []common.Address
	ChainIDs           []uint64
}

// WorkflowEngine is the single-threaded transition processor. It exclusively
// owns the balance tracker and the insurance registry: every externally
// invoked operation validates first (typed error, first failing check wins),
// then applies its journal batch, registry mutation, state hash, and
// notification as one indivisible unit. A failed validation has no effect.
type WorkflowEngine struct {
	sequence   int64
	cfg        Config
	hasher     *StateHasher
	tracker    *ledger.BalanceTracker
	journalGen *ledger.JournalGenerator
	validator  *ledger.InvariantValidator
	registry   *insurance.Registry
	roles      access.Directory
	vault      custody.Vault
	metrics    *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output

	now func() time.Time
}

func NewWorkflowEngine(
	startSequence int64,
	cfg Config,
	roles access.Directory,
	vault custody.Vault,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
) *WorkflowEngine {
	tracker := ledger.NewBalanceTracker()

	return &WorkflowEngine{
		sequence:    startSequence,
		cfg:         cfg,
		hasher:      NewStateHasher(),
		tracker:     tracker,
		journalGen:  ledger.NewJournalGenerator(startSequence, tracker),
		validator:   ledger.NewInvariantValidator(tracker),
		registry:    insurance.NewRegistry(),
		roles:       roles,
		vault:       vault,
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
		now:         time.Now,
	}
}

// SetClock overrides the time source (tests). Time-based transitions are
// evaluated lazily against the clock observed at operation entry.
func (e *WorkflowEngine) SetClock(now func() time.Time) {
	e.now = now
}

// --- Liquidity Pool Registry operations ---

// AddLiquidity pulls collateral from a liquidity provider into custody and
// credits the asset's uncommitted counter. Checked addition fails closed.
func (e *WorkflowEngine) AddLiquidity(provider, asset common.Address, amount int64) error {
	op := "add_liquidity"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if !e.roles.HasRole(access.RoleLiquidityProvider, provider) {
		return e.reject(op, "role", &UnauthorizedError{Caller: provider, Need: access.RoleLiquidityProvider})
	}
	if asset == (common.Address{}) {
		return e.reject(op, "sentinel_asset", &SentinelAssetError{})
	}
	if amount <= 0 {
		return e.reject(op, "zero_amount", &ZeroAmountError{Asset: asset})
	}

	batch, err := e.journalGen.GenerateLiquidityAdd(opRef(op, asset.Hex()), asset, amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "overflow", err)
	}

	// The pull failing aborts the whole operation; nothing has been applied yet
	if err := e.vault.TransferIn(asset, provider, amount); err != nil {
		return e.reject(op, "custody", fmt.Errorf("custody pull failed: %w", err))
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	e.commit(op, batch, &event.LiquidityAdded{Asset: asset, Amount: amount, Provider: provider}, nil, &asset, ts)
	return nil
}

// RemoveLiquidity returns uncommitted collateral to the administrator
func (e *WorkflowEngine) RemoveLiquidity(caller, asset common.Address, amount int64) error {
	op := "remove_liquidity"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if !e.roles.IsAdmin(caller) {
		return e.reject(op, "role", &UnauthorizedError{Caller: caller, Need: "administrator"})
	}
	if amount <= 0 {
		return e.reject(op, "zero_amount", &ZeroAmountError{Asset: asset})
	}
	if available := e.tracker.GetPoolAvailable(asset); amount > available {
		return e.reject(op, "insufficient", &InsufficientLiquidityError{
			Requested: amount, Available: available, Asset: asset,
		})
	}

	batch, err := e.journalGen.GenerateLiquidityRemove(opRef(op, asset.Hex()), asset, amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.vault.TransferOut(asset, caller, amount); err != nil {
		return e.reject(op, "custody", fmt.Errorf("custody payout failed: %w", err))
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	e.commit(op, batch, &event.LiquidityRemoved{Asset: asset, Amount: amount, To: caller}, nil, &asset, ts)
	return nil
}

// AvailableLiquidity is a pure read of the uncommitted counter; zero if unseen
func (e *WorkflowEngine) AvailableLiquidity(asset common.Address) int64 {
	return e.tracker.GetPoolAvailable(asset)
}

// CollectedFees returns accumulated fee payments for an asset
func (e *WorkflowEngine) CollectedFees(asset common.Address) int64 {
	return e.tracker.GetCollectedFees(asset)
}

// --- Insurance Workflow operations ---

// RequestInsurance validates a new coverage request and atomically reserves
// pool collateral for it. Validation order is fixed: the first failing check
// wins and nothing mutates.
func (e *WorkflowEngine) RequestInsurance(caller common.Address, req InsuranceRequest) error {
	op := "request_insurance"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if rec := e.registry.Get(caller); rec != nil {
		return e.reject(op, "already_requested", &AlreadyRequestedError{Owner: caller})
	}
	if len(req.Scope) == 0 {
		return e.reject(op, "empty_scope", ErrEmptyScope)
	}
	if req.ContactInformation == "" {
		return e.reject(op, "empty_contact", ErrEmptyContactInformation)
	}
	if req.Token.Amount <= 0 {
		return e.reject(op, "zero_amount", &ZeroAmountError{Asset: req.Token.Asset})
	}
	if len(req.Scope) != len(req.ChainIDs) {
		return e.reject(op, "size_mismatch", &SizeMismatchError{
			ScopeLen: len(req.Scope), ChainIDsLen: len(req.ChainIDs),
		})
	}
	// The sentinel asset has an empty pool, so it must reject before the
	// liquidity check to surface the real cause.
	if req.Token.Asset == (common.Address{}) {
		return e.reject(op, "sentinel_asset", &SentinelAssetError{})
	}
	if available := e.tracker.GetPoolAvailable(req.Token.Asset); req.Token.Amount > available {
		return e.reject(op, "insufficient", &InsufficientLiquidityError{
			Requested: req.Token.Amount, Available: available, Asset: req.Token.Asset,
		})
	}

	batch, err := e.journalGen.GenerateReservation(
		opRef(op, caller.Hex()), caller, req.Token.Asset, req.Token.Amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	rec := &insurance.Insurance{
		Owner:              caller,
		ProtocolName:       req.ProtocolName,
		ProtocolWebsite:    req.ProtocolWebsite,
		ContactInformation: req.ContactInformation,
		Scope:              append([]common.Address(nil), req.Scope...),
		ChainIDs:           append([]uint64(nil), req.ChainIDs...),
		Token:              req.Token,
		Status:             insurance.StatusRequested,
	}
	e.registry.Put(rec)

	e.commit(op, batch, &event.InsuranceRequested{
		Owner:              caller,
		ProtocolName:       req.ProtocolName,
		ProtocolWebsite:    req.ProtocolWebsite,
		ContactInformation: req.ContactInformation,
		Scope:              rec.Scope,
		ChainIDs:           rec.ChainIDs,
		Asset:              req.Token.Asset,
		Amount:             req.Token.Amount,
	}, &caller, &req.Token.Asset, ts)
	return nil
}

// ApproveInsurance moves a record from Requested to Approved, assigning the
// auditor's per-contract risk scores (aligned to scope) and the yearly price
// with the first payment deadline. Pricing itself is an auditor input.
func (e *WorkflowEngine) ApproveInsurance(caller, owner common.Address, scores []byte, yearlyPrice int64) error {
	op := "approve_insurance"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if !e.roles.HasRole(access.RoleInsuranceAuditor, caller) {
		return e.reject(op, "role", &UnauthorizedError{Caller: caller, Need: access.RoleInsuranceAuditor})
	}

	rec := e.registry.Get(owner)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: owner})
	}
	if rec.Status != insurance.StatusRequested {
		return e.reject(op, "already_approved", &AlreadyApprovedError{Owner: owner})
	}
	if len(scores) != len(rec.Scope) {
		return e.reject(op, "score_mismatch", &ScoreMismatchError{
			ScopeLen: len(rec.Scope), ScoresLen: len(scores),
		})
	}
	if yearlyPrice < 0 {
		return e.reject(op, "zero_amount", &ZeroAmountError{Asset: rec.Token.Asset})
	}

	deadline := ts.Add(e.cfg.PaymentPeriod)
	rec.Scores = append([]byte(nil), scores...)
	rec.Payment = insurance.InsurancePayment{YearlyPrice: yearlyPrice, Deadline: deadline}
	rec.Status = insurance.StatusApproved
	rec.Version++

	e.commit(op, nil, &event.InsuranceApproved{
		Owner:       owner,
		Scores:      rec.Scores,
		YearlyPrice: yearlyPrice,
		Deadline:    deadline,
	}, &owner, &rec.Token.Asset, ts)
	return nil
}

// RejectInsurance releases a requested record's reservation back to the pool
// and removes the record: rejected requests hold no coverage, and removal
// lets the owner submit a corrected request.
func (e *WorkflowEngine) RejectInsurance(caller, owner common.Address, reason string) error {
	op := "reject_insurance"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if !e.roles.HasRole(access.RoleInsuranceAuditor, caller) {
		return e.reject(op, "role", &UnauthorizedError{Caller: caller, Need: access.RoleInsuranceAuditor})
	}

	rec := e.registry.Get(owner)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: owner})
	}
	if rec.Status != insurance.StatusRequested {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: owner, Status: rec.Status, Operation: op,
		})
	}

	batch, err := e.journalGen.GenerateReservationRelease(
		opRef(op, owner.Hex()), owner, rec.Token.Asset, rec.Token.Amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	asset := rec.Token.Asset
	amount := rec.Token.Amount
	e.registry.Remove(owner)

	e.commit(op, batch, &event.InsuranceRejected{
		Owner: owner, Asset: asset, Amount: amount, Reason: reason,
	}, &owner, &asset, ts)
	return nil
}

// RequestCover opens a claim against the caller's approved coverage
func (e *WorkflowEngine) RequestCover(caller common.Address) error {
	op := "request_cover"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(caller)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: caller})
	}
	if rec.Lapsed(ts) {
		return e.reject(op, "lapsed", &LapsedError{Owner: caller, Deadline: rec.Payment.Deadline})
	}
	if rec.Status != insurance.StatusApproved {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: caller, Status: rec.Status, Operation: op,
		})
	}

	rec.Status = insurance.StatusCoverRequested
	rec.Version++

	e.commit(op, nil, &event.CoverRequested{Owner: caller}, &caller, &rec.Token.Asset, ts)
	return nil
}

// ApproveCover accepts an open claim; the reservation becomes payable via UnlockFunds
func (e *WorkflowEngine) ApproveCover(caller, owner common.Address) error {
	op := "approve_cover"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if !e.roles.HasRole(access.RoleCoverAuditor, caller) {
		return e.reject(op, "role", &UnauthorizedError{Caller: caller, Need: access.RoleCoverAuditor})
	}

	rec := e.registry.Get(owner)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: owner})
	}
	if rec.Status != insurance.StatusCoverRequested {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: owner, Status: rec.Status, Operation: op,
		})
	}

	rec.Status = insurance.StatusCoverApproved
	rec.Version++

	e.commit(op, nil, &event.CoverApproved{Owner: owner}, &owner, &rec.Token.Asset, ts)
	return nil
}

// RejectCover declines an open claim. Reversible: the owner may accept the
// rejection and return to plain Approved coverage.
func (e *WorkflowEngine) RejectCover(caller, owner common.Address, reason string) error {
	op := "reject_cover"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	if !e.roles.HasRole(access.RoleCoverAuditor, caller) {
		return e.reject(op, "role", &UnauthorizedError{Caller: caller, Need: access.RoleCoverAuditor})
	}

	rec := e.registry.Get(owner)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: owner})
	}
	if rec.Status != insurance.StatusCoverRequested {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: owner, Status: rec.Status, Operation: op,
		})
	}

	rec.Status = insurance.StatusCoverRejected
	rec.Version++

	e.commit(op, nil, &event.CoverRejected{Owner: owner, Reason: reason}, &owner, &rec.Token.Asset, ts)
	return nil
}

// AcceptCoverRejection restores the pre-claim Approved state without
// altering the reserved amount
func (e *WorkflowEngine) AcceptCoverRejection(caller common.Address) error {
	op := "accept_cover_rejection"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(caller)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: caller})
	}
	if rec.Status != insurance.StatusCoverRejected {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: caller, Status: rec.Status, Operation: op,
		})
	}

	rec.Status = insurance.StatusApproved
	rec.Version++

	e.commit(op, nil, &event.CoverRejectionAccepted{Owner: caller}, &caller, &rec.Token.Asset, ts)
	return nil
}

// UnlockFunds is the terminal payout after an approved claim: the reserved
// collateral is transferred out to the record owner and the record closes.
// The pool counter is untouched; the amount left "available" at request time.
func (e *WorkflowEngine) UnlockFunds(caller common.Address) error {
	op := "unlock_funds"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(caller)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: caller})
	}
	if rec.Status != insurance.StatusCoverApproved {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: caller, Status: rec.Status, Operation: op,
		})
	}

	batch, err := e.journalGen.GeneratePayout(
		opRef(op, caller.Hex()), caller, rec.Token.Asset, rec.Token.Amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.vault.TransferOut(rec.Token.Asset, caller, rec.Token.Amount); err != nil {
		return e.reject(op, "custody", fmt.Errorf("custody payout failed: %w", err))
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	asset := rec.Token.Asset
	amount := rec.Token.Amount
	e.registry.Remove(caller)

	e.commit(op, batch, &event.FundsUnlocked{Owner: caller, Asset: asset, Amount: amount}, &caller, &asset, ts)
	return nil
}

// DeleteInsurance removes a record and credits its reservation back to the
// pool. Open to the record owner and the administrator at any time, and to
// anyone once coverage has lapsed past its payment deadline.
func (e *WorkflowEngine) DeleteInsurance(caller, owner common.Address) error {
	op := "delete_insurance"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(owner)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: owner})
	}

	lapsed := rec.Lapsed(ts)
	if !lapsed && caller != owner && !e.roles.IsAdmin(caller) {
		return e.reject(op, "role", &UnauthorizedError{Caller: caller, Need: "record owner or administrator"})
	}

	batch, err := e.journalGen.GenerateReservationRelease(
		opRef(op, owner.Hex()), owner, rec.Token.Asset, rec.Token.Amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	asset := rec.Token.Asset
	amount := rec.Token.Amount
	e.registry.Remove(owner)

	e.commit(op, batch, &event.InsuranceDeleted{
		Owner: owner, Asset: asset, Released: amount, Lapsed: lapsed,
	}, &owner, &asset, ts)
	return nil
}

// PayInsuranceFee pays the yearly price and advances the deadline by one
// period. Open to any payer (third-party payment allowed), but only inside
// the payment window and never on a lapsed record.
func (e *WorkflowEngine) PayInsuranceFee(payer, owner common.Address) error {
	op := "pay_insurance_fee"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(owner)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: owner})
	}
	if rec.Payment.Deadline.IsZero() {
		return e.reject(op, "invalid_status", &InvalidStatusError{
			Owner: owner, Status: rec.Status, Operation: op,
		})
	}
	if rec.Lapsed(ts) {
		return e.reject(op, "lapsed", &LapsedError{Owner: owner, Deadline: rec.Payment.Deadline})
	}
	if !rec.PaymentDue(ts, e.cfg.PaymentWindow) {
		return e.reject(op, "not_due", &PaymentNotDueError{Owner: owner, Deadline: rec.Payment.Deadline})
	}

	var batch *ledger.Batch
	if rec.Payment.YearlyPrice > 0 {
		var err error
		batch, err = e.journalGen.GenerateFeePayment(
			opRef(op, owner.Hex()), rec.Token.Asset, rec.Payment.YearlyPrice, ts.UnixMicro())
		if err != nil {
			return e.reject(op, "precheck", err)
		}

		if err := e.vault.TransferIn(rec.Token.Asset, payer, rec.Payment.YearlyPrice); err != nil {
			return e.reject(op, "custody", fmt.Errorf("custody pull failed: %w", err))
		}

		if err := e.apply(batch); err != nil {
			return err
		}
	}

	// Advance from the stored deadline, not from now: early payment must
	// not shorten the coverage year
	rec.Payment.Deadline = rec.Payment.Deadline.Add(e.cfg.PaymentPeriod)
	rec.Version++

	e.commit(op, batch, &event.InsuranceFeePaid{
		Owner:       owner,
		Payer:       payer,
		Asset:       rec.Token.Asset,
		Price:       rec.Payment.YearlyPrice,
		NewDeadline: rec.Payment.Deadline,
	}, &owner, &rec.Token.Asset, ts)
	return nil
}

// ChangeInsuranceAdmin re-keys the caller's record to a new owner address,
// moving the reservation with it. The pool counter is untouched.
func (e *WorkflowEngine) ChangeInsuranceAdmin(caller, newAdmin common.Address) error {
	op := "change_insurance_admin"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(caller)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: caller})
	}
	if newAdmin == (common.Address{}) {
		return e.reject(op, "sentinel_address", &SentinelAddressError{Field: "new admin"})
	}
	if e.registry.Get(newAdmin) != nil {
		return e.reject(op, "already_requested", &AlreadyRequestedError{Owner: newAdmin})
	}

	batch, err := e.journalGen.GenerateReserveTransfer(
		opRef(op, caller.Hex()), caller, newAdmin, rec.Token.Asset, rec.Token.Amount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	asset := rec.Token.Asset
	e.registry.Rekey(caller, newAdmin)
	rec.Version++

	e.commit(op, batch, &event.InsuranceAdminChanged{
		Owner: caller, NewAdmin: newAdmin,
	}, &caller, &asset, ts)
	return nil
}

// ChangeInsuranceAmount grows or shrinks the caller's insured amount. Growth
// is bounded by what the pool can still back (available + current
// reservation); the ledger adjusts symmetrically and the yearly price is
// rescaled proportionally.
func (e *WorkflowEngine) ChangeInsuranceAmount(caller common.Address, newAmount int64) error {
	op := "change_insurance_amount"
	ts := e.now()
	defer e.observeOp(op, time.Now())

	rec := e.registry.Get(caller)
	if rec == nil {
		return e.reject(op, "not_requested", &NotRequestedError{Owner: caller})
	}
	if newAmount <= 0 {
		return e.reject(op, "zero_amount", &ZeroAmountError{Asset: rec.Token.Asset})
	}

	available := e.tracker.GetPoolAvailable(rec.Token.Asset)
	max, err := ledger.CheckedAdd(available, rec.Token.Amount)
	if err != nil {
		return e.reject(op, "overflow", err)
	}
	if newAmount > max {
		return e.reject(op, "exceeds_backing", &AmountExceedsBackingError{
			Requested: newAmount, Max: max, Asset: rec.Token.Asset,
		})
	}

	oldAmount := rec.Token.Amount
	if newAmount == oldAmount {
		// Nothing to adjust
		return nil
	}

	// Rescale the price proportionally before touching the ledger so an
	// overflowing product rejects the whole change with no effect.
	newPrice := rec.Payment.YearlyPrice
	if newPrice > 0 {
		scaled, err := ledger.CheckedMul(newPrice, newAmount)
		if err != nil {
			return e.reject(op, "overflow", &PriceOverflowError{
				Owner: caller, YearlyPrice: newPrice, NewAmount: newAmount,
			})
		}
		newPrice = scaled / oldAmount
	}

	batch, err := e.journalGen.GenerateReserveAdjust(
		opRef(op, caller.Hex()), caller, rec.Token.Asset, oldAmount, newAmount, ts.UnixMicro())
	if err != nil {
		return e.reject(op, "precheck", err)
	}

	if err := e.apply(batch); err != nil {
		return err
	}

	rec.Token.Amount = newAmount
	rec.Payment.YearlyPrice = newPrice
	rec.Version++

	e.commit(op, batch, &event.InsuranceAmountChanged{
		Owner:       caller,
		Asset:       rec.Token.Asset,
		OldAmount:   oldAmount,
		NewAmount:   newAmount,
		YearlyPrice: rec.Payment.YearlyPrice,
	}, &caller, &rec.Token.Asset, ts)
	return nil
}

// InsuranceOf returns a copy of the owner's record; the zero-value record
// (sentinel token address) if none exists
func (e *WorkflowEngine) InsuranceOf(owner common.Address) insurance.Insurance {
	return e.registry.InsuranceOf(owner)
}

// ActiveRecords returns the number of live records
func (e *WorkflowEngine) ActiveRecords() int {
	return e.registry.Len()
}

// --- Pipeline internals ---

func opRef(op, key string) string {
	return op + ":" + key
}

// observeOp records operation latency against the wall clock. The
// injectable clock only drives domain time, not timings.
func (e *WorkflowEngine) observeOp(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// reject counts a failed validation and passes the typed error through.
// By construction nothing has mutated when reject is reached.
func (e *WorkflowEngine) reject(op, reason string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
	return err
}

// apply validates and applies a journal batch to the tracker
func (e *WorkflowEngine) apply(batch *ledger.Batch) error {
	if err := e.validator.ValidateBatchBalance(batch); err != nil {
		panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
	}
	if err := e.tracker.ApplyBatch(batch); err != nil {
		return fmt.Errorf("apply batch failed: %w", err)
	}
	return nil
}

// commit finishes a transition: post-checks the ledger invariants, chains
// the state hash, and emits the envelope. The persist channel uses a
// BLOCKING send (backpressure, no transition is lost); the publish channel
// uses a NON-BLOCKING send with drop; consumers can rebuild from the log.
func (e *WorkflowEngine) commit(
	op string,
	batch *ledger.Batch,
	evt event.Event,
	owner, asset *common.Address,
	ts time.Time,
) {
	if err := e.postCheckInvariants(asset); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", op, err))
	}

	prevHash := e.hasher.GetPrevHash()
	stateDigest := e.computeStateDigest(batch)
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	envelope := &event.Envelope{
		Sequence:  e.sequence,
		EventType: evt.EventType(),
		Owner:     owner,
		Asset:     asset,
		Timestamp: ts,
		Payload:   evt,
		StateHash: stateHash,
		PrevHash:  prevHash,
	}

	output := Output{Envelope: envelope, Batch: batch}

	if e.persistChan != nil {
		e.persistChan <- output
	}

	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	e.sequence++

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.Sequence.Set(float64(e.sequence))
		e.metrics.ActivePolicies.Set(float64(e.registry.Len()))
		if asset != nil {
			e.metrics.PoolAvailable.WithLabelValues(asset.Hex()).Set(float64(e.tracker.GetPoolAvailable(*asset)))
			e.metrics.ReservedTotal.WithLabelValues(asset.Hex()).Set(float64(e.tracker.ReservedTotal(*asset)))
		}
		if batch != nil {
			for _, j := range batch.Journals {
				e.metrics.JournalsGenerated.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
	}
}

// postCheckInvariants validates conservation after a transition has applied.
// A violation here means the ledger itself is corrupt, not the input. Fatal.
func (e *WorkflowEngine) postCheckInvariants(asset *common.Address) error {
	if err := e.validator.ValidateGlobalBalance(); err != nil {
		return err
	}
	if asset != nil {
		if err := e.validator.ValidatePoolNonNegative(*asset); err != nil {
			return err
		}
		if err := e.validator.ValidateReservedMatches(*asset, e.registry.ReservedTotal(*asset)); err != nil {
			return err
		}
	}
	return nil
}

// computeStateDigest creates canonical bytes over the accounts a batch touched
func (e *WorkflowEngine) computeStateDigest(batch *ledger.Batch) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := e.tracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		digest = appendInt64LE(digest, balance)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// GetSequence returns the next transition sequence to assign
func (e *WorkflowEngine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip)
func (e *WorkflowEngine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}
