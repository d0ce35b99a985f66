package ledger_test

import (
	"math"
	"testing"

	"CoverLedger/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	assetA = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	assetB = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	owner1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_PoolPath(t *testing.T) {
	key := ledger.NewPoolAccountKey(assetA)

	path := key.AccountPath()
	expected := "pool:available:" + assetA.Hex()
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_OwnerPath(t *testing.T) {
	key := ledger.NewOwnerReservedKey(owner1, assetA)

	path := key.AccountPath()
	expected := "owner:" + owner1.Hex() + ":reserved:" + assetA.Hex()
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_SystemAndExternalPaths(t *testing.T) {
	if got := ledger.NewSystemFeesKey(assetA).AccountPath(); got != "system:fees:"+assetA.Hex() {
		t.Errorf("fees path: got %q", got)
	}
	if got := ledger.NewExternalAccountKey(ledger.SubTypeExternalCustody, assetA).AccountPath(); got != "external:custody:"+assetA.Hex() {
		t.Errorf("custody path: got %q", got)
	}
	if got := ledger.NewExternalAccountKey(ledger.SubTypeExternalPayouts, assetA).AccountPath(); got != "external:payouts:"+assetA.Hex() {
		t.Errorf("payouts path: got %q", got)
	}
}

func TestParseAccountPath_RoundTrip(t *testing.T) {
	keys := []ledger.AccountKey{
		ledger.NewPoolAccountKey(assetA),
		ledger.NewOwnerReservedKey(owner1, assetB),
		ledger.NewSystemFeesKey(assetA),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalCustody, assetB),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalPayouts, assetA),
	}

	for _, key := range keys {
		parsed, err := ledger.ParseAccountPath(key.AccountPath())
		if err != nil {
			t.Fatalf("parse %q: %v", key.AccountPath(), err)
		}
		if parsed != key {
			t.Errorf("round trip %q: got %+v, want %+v", key.AccountPath(), parsed, key)
		}
	}
}

func TestParseAccountPath_Invalid(t *testing.T) {
	if _, err := ledger.ParseAccountPath("garbage"); err == nil {
		t.Error("expected error for malformed path")
	}
	if _, err := ledger.ParseAccountPath("pool:reserved:0xAA"); err == nil {
		t.Error("expected error for wrong sub-type")
	}
}

// ============================================================================
// Test: CheckedAdd
// ============================================================================

func TestCheckedAdd_Normal(t *testing.T) {
	sum, err := ledger.CheckedAdd(100, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 300 {
		t.Errorf("got %d, want 300", sum)
	}
}

func TestCheckedAdd_Overflow(t *testing.T) {
	if _, err := ledger.CheckedAdd(math.MaxInt64, 1); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := ledger.CheckedAdd(math.MinInt64, -1); err == nil {
		t.Error("expected underflow error")
	}
}

func TestCheckedMul_Normal(t *testing.T) {
	p, err := ledger.CheckedMul(50, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 200 {
		t.Errorf("got %d, want 200", p)
	}

	if p, _ := ledger.CheckedMul(0, math.MaxInt64); p != 0 {
		t.Errorf("zero factor: got %d", p)
	}
}

func TestCheckedMul_Overflow(t *testing.T) {
	if _, err := ledger.CheckedMul(1<<62, 4); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := ledger.CheckedMul(math.MinInt64, -1); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := ledger.CheckedMul(math.MaxInt64, 2); err == nil {
		t.Error("expected overflow error")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	if got := bt.GetPoolAvailable(assetA); got != 0 {
		t.Errorf("initial pool balance should be 0, got %d", got)
	}
	if got := bt.GetOwnerReserved(owner1, assetA); got != 0 {
		t.Errorf("initial reserved balance should be 0, got %d", got)
	}
}

func TestBalanceTracker_ApplyBatch(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	batch, err := gen.GenerateLiquidityAdd("test", assetA, 1000, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := bt.GetPoolAvailable(assetA); got != 1000 {
		t.Errorf("pool available: got %d, want 1000", got)
	}
	// External custody account absorbed the opposite side
	custody := bt.GetBalance(ledger.NewExternalAccountKey(ledger.SubTypeExternalCustody, assetA))
	if custody != -1000 {
		t.Errorf("custody balance: got %d, want -1000", custody)
	}
}

func TestBalanceTracker_ZeroSumAfterBatches(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	steps := []func() (*ledger.Batch, error){
		func() (*ledger.Batch, error) { return gen.GenerateLiquidityAdd("add", assetA, 1000, 1) },
		func() (*ledger.Batch, error) { return gen.GenerateReservation("rsv", owner1, assetA, 400, 2) },
		func() (*ledger.Batch, error) { return gen.GenerateReservationRelease("rel", owner1, assetA, 400, 3) },
		func() (*ledger.Batch, error) { return gen.GenerateLiquidityRemove("rm", assetA, 250, 4) },
	}

	for i, step := range steps {
		batch, err := step()
		if err != nil {
			t.Fatalf("step %d generate: %v", i, err)
		}
		if err := bt.ApplyBatch(batch); err != nil {
			t.Fatalf("step %d apply: %v", i, err)
		}
	}

	for asset, sum := range bt.ComputeGlobalBalance() {
		if sum != 0 {
			t.Errorf("asset %s not zero-sum: %d", asset.Hex(), sum)
		}
	}

	if got := bt.GetPoolAvailable(assetA); got != 750 {
		t.Errorf("pool available: got %d, want 750", got)
	}
}

func TestBalanceTracker_BatchRollbackOnFailure(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	pool := ledger.NewPoolAccountKey(assetA)
	custody := ledger.NewExternalAccountKey(ledger.SubTypeExternalCustody, assetA)
	bt.SetBalance(pool, math.MaxInt64)

	batchID := uuid.New()
	batch := &ledger.Batch{
		BatchID:  batchID,
		EventRef: "overflow",
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      "overflow",
				DebitAccount:  ledger.NewOwnerReservedKey(owner1, assetA),
				CreditAccount: custody,
				Asset:         assetA,
				Amount:        10,
				JournalType:   ledger.JournalTypeReserve,
			},
			{
				// Second entry overflows the saturated pool account
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      "overflow",
				DebitAccount:  pool,
				CreditAccount: custody,
				Asset:         assetA,
				Amount:        10,
				JournalType:   ledger.JournalTypeReserve,
			},
		},
	}

	if err := bt.ApplyBatch(batch); err == nil {
		t.Fatal("expected overflow error")
	}

	// First entry must have been rolled back
	if got := bt.GetOwnerReserved(owner1, assetA); got != 0 {
		t.Errorf("rollback failed: reserved = %d, want 0", got)
	}
}

// ============================================================================
// Test: Batch validation
// ============================================================================

func TestBatch_ValidateRejectsEmpty(t *testing.T) {
	batch := &ledger.Batch{BatchID: uuid.New()}
	if err := batch.Validate(); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestBatch_ValidateRejectsNonPositiveAmount(t *testing.T) {
	batchID := uuid.New()
	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  ledger.NewPoolAccountKey(assetA),
			CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalCustody, assetA),
			Asset:         assetA,
			Amount:        0,
		}},
	}
	if err := batch.Validate(); err == nil {
		t.Error("expected error for zero amount")
	}
}

func TestBatch_ValidateRejectsSelfTransfer(t *testing.T) {
	batchID := uuid.New()
	pool := ledger.NewPoolAccountKey(assetA)
	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  pool,
			CreditAccount: pool,
			Asset:         assetA,
			Amount:        10,
		}},
	}
	if err := batch.Validate(); err == nil {
		t.Error("expected error for self transfer")
	}
}

func TestBatch_ValidateRejectsCrossAsset(t *testing.T) {
	batchID := uuid.New()
	batch := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  ledger.NewPoolAccountKey(assetA),
			CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalCustody, assetB),
			Asset:         assetA,
			Amount:        10,
		}},
	}
	if err := batch.Validate(); err == nil {
		t.Error("expected error for cross-asset entry")
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestGenerator_ReservationRequiresLiquidity(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	if _, err := gen.GenerateReservation("rsv", owner1, assetA, 100, 1); err == nil {
		t.Error("expected error reserving from empty pool")
	}
}

func TestGenerator_ReserveTransferMovesBetweenOwners(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	add, _ := gen.GenerateLiquidityAdd("add", assetA, 500, 1)
	if err := bt.ApplyBatch(add); err != nil {
		t.Fatal(err)
	}
	rsv, _ := gen.GenerateReservation("rsv", owner1, assetA, 300, 2)
	if err := bt.ApplyBatch(rsv); err != nil {
		t.Fatal(err)
	}

	xfer, err := gen.GenerateReserveTransfer("xfer", owner1, owner2, assetA, 300, 3)
	if err != nil {
		t.Fatalf("generate transfer: %v", err)
	}
	if err := bt.ApplyBatch(xfer); err != nil {
		t.Fatal(err)
	}

	if got := bt.GetOwnerReserved(owner1, assetA); got != 0 {
		t.Errorf("old owner reserved: got %d, want 0", got)
	}
	if got := bt.GetOwnerReserved(owner2, assetA); got != 300 {
		t.Errorf("new owner reserved: got %d, want 300", got)
	}
	// Pool untouched by a transfer
	if got := bt.GetPoolAvailable(assetA); got != 200 {
		t.Errorf("pool available: got %d, want 200", got)
	}
}

func TestGenerator_ReserveAdjustBothDirections(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	add, _ := gen.GenerateLiquidityAdd("add", assetA, 1000, 1)
	bt.ApplyBatch(add)
	rsv, _ := gen.GenerateReservation("rsv", owner1, assetA, 300, 2)
	bt.ApplyBatch(rsv)

	grow, err := gen.GenerateReserveAdjust("grow", owner1, assetA, 300, 500, 3)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if err := bt.ApplyBatch(grow); err != nil {
		t.Fatal(err)
	}
	if got := bt.GetOwnerReserved(owner1, assetA); got != 500 {
		t.Errorf("after grow: reserved = %d, want 500", got)
	}
	if got := bt.GetPoolAvailable(assetA); got != 500 {
		t.Errorf("after grow: pool = %d, want 500", got)
	}

	shrink, err := gen.GenerateReserveAdjust("shrink", owner1, assetA, 500, 100, 4)
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if err := bt.ApplyBatch(shrink); err != nil {
		t.Fatal(err)
	}
	if got := bt.GetOwnerReserved(owner1, assetA); got != 100 {
		t.Errorf("after shrink: reserved = %d, want 100", got)
	}
	if got := bt.GetPoolAvailable(assetA); got != 900 {
		t.Errorf("after shrink: pool = %d, want 900", got)
	}
}

func TestGenerator_AdjustRejectsUnchangedAmount(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	if _, err := gen.GenerateReserveAdjust("noop", owner1, assetA, 100, 100, 1); err == nil {
		t.Error("expected error for unchanged amount")
	}
}

func TestGenerator_PayoutLeavesPoolUntouched(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)

	add, _ := gen.GenerateLiquidityAdd("add", assetA, 1000, 1)
	bt.ApplyBatch(add)
	rsv, _ := gen.GenerateReservation("rsv", owner1, assetA, 400, 2)
	bt.ApplyBatch(rsv)

	payout, err := gen.GeneratePayout("pay", owner1, assetA, 400, 3)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if err := bt.ApplyBatch(payout); err != nil {
		t.Fatal(err)
	}

	if got := bt.GetPoolAvailable(assetA); got != 600 {
		t.Errorf("pool: got %d, want 600", got)
	}
	if got := bt.GetOwnerReserved(owner1, assetA); got != 0 {
		t.Errorf("reserved: got %d, want 0", got)
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestValidator_GlobalBalanceZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)
	v := ledger.NewInvariantValidator(bt)

	add, _ := gen.GenerateLiquidityAdd("add", assetA, 1000, 1)
	bt.ApplyBatch(add)

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("zero-sum should hold: %v", err)
	}

	// Corrupt one account: zero-sum must now fail
	bt.SetBalance(ledger.NewPoolAccountKey(assetA), 999)
	if err := v.ValidateGlobalBalance(); err == nil {
		t.Error("expected zero-sum violation after corruption")
	}
}

func TestValidator_ReservedMatches(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(0, bt)
	v := ledger.NewInvariantValidator(bt)

	add, _ := gen.GenerateLiquidityAdd("add", assetA, 1000, 1)
	bt.ApplyBatch(add)
	rsv, _ := gen.GenerateReservation("rsv", owner1, assetA, 400, 2)
	bt.ApplyBatch(rsv)

	if err := v.ValidateReservedMatches(assetA, 400); err != nil {
		t.Errorf("reserved should match: %v", err)
	}
	if err := v.ValidateReservedMatches(assetA, 500); err == nil {
		t.Error("expected mismatch error")
	}
}
