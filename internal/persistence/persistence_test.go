package persistence_test

import (
	"context"
	"testing"
	"time"

	"CoverLedger/internal/access"
	"CoverLedger/internal/custody"
	"CoverLedger/internal/engine"
	"CoverLedger/internal/event"
	"CoverLedger/internal/insurance"
	"CoverLedger/internal/observability"
	"CoverLedger/internal/persistence"
	"CoverLedger/internal/testutil"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin    = common.HexToAddress("0xAAAA000000000000000000000000000000000001")
	auditor  = common.HexToAddress("0xAAAA000000000000000000000000000000000002")
	provider = common.HexToAddress("0xAAAA000000000000000000000000000000000004")
	owner1   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	assetA   = common.HexToAddress("0x00000000000000000000000000000000000000AA")
)

// runScenario drives an engine through a short lifecycle and returns the
// committed outputs in order.
func runScenario(t *testing.T) ([]engine.Output, *engine.WorkflowEngine) {
	t.Helper()

	roles := access.NewRoleRegistry(admin)
	vault := custody.NewMemoryVault()
	if err := roles.GrantRole(admin, access.RoleLiquidityProvider, provider); err != nil {
		t.Fatal(err)
	}
	if err := roles.GrantRole(admin, access.RoleInsuranceAuditor, auditor); err != nil {
		t.Fatal(err)
	}

	outputs := make(chan engine.Output, 64)
	eng := engine.NewWorkflowEngine(0, engine.DefaultConfig(), roles, vault, outputs, nil, nil)
	eng.SetClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	})

	vault.Mint(assetA, provider, 1000)
	vault.Approve(assetA, provider, 1000)
	if err := eng.AddLiquidity(provider, assetA, 1000); err != nil {
		t.Fatal(err)
	}
	if err := eng.RequestInsurance(owner1, engine.InsuranceRequest{
		ProtocolName:       "ExampleSwap",
		ContactInformation: "security@example.org",
		Token:              insurance.InsuranceToken{Amount: 100, Asset: assetA},
		Scope:              []common.Address{common.HexToAddress("0x3333333333333333333333333333333333333333")},
		ChainIDs:           []uint64{1},
	}); err != nil {
		t.Fatal(err)
	}
	if err := eng.ApproveInsurance(auditor, owner1, []byte{7}, 50); err != nil {
		t.Fatal(err)
	}

	var out []engine.Output
	for len(outputs) > 0 {
		out = append(out, <-outputs)
	}
	return out, eng
}

// ============================================================================
// Test: row mapping
// ============================================================================

func TestFromEngineOutput_Rows(t *testing.T) {
	outputs, _ := runScenario(t)

	// Liquidity add: pool event with an asset and a journal
	evt, journals, err := persistence.FromEngineOutput(outputs[0])
	if err != nil {
		t.Fatal(err)
	}
	if evt.Sequence != 0 {
		t.Errorf("sequence: got %d", evt.Sequence)
	}
	if evt.EventType != event.EventTypeLiquidityAdded.String() {
		t.Errorf("event type: got %s", evt.EventType)
	}
	if evt.Asset == nil || *evt.Asset != assetA.Hex() {
		t.Error("asset hex missing")
	}
	if len(journals) != 1 {
		t.Fatalf("journals: got %d, want 1", len(journals))
	}
	if journals[0].Amount != 1000 {
		t.Errorf("journal amount: got %d", journals[0].Amount)
	}
	if journals[0].Sequence != 0 {
		t.Errorf("journal sequence: got %d", journals[0].Sequence)
	}

	// Approval: status-only, no journals
	evt, journals, err = persistence.FromEngineOutput(outputs[2])
	if err != nil {
		t.Fatal(err)
	}
	if len(journals) != 0 {
		t.Errorf("status-only transition produced %d journals", len(journals))
	}
	if evt.Owner == nil || *evt.Owner != owner1.Hex() {
		t.Error("owner hex missing")
	}
	if len(evt.Payload) == 0 {
		t.Error("payload must be JSON-encoded")
	}
}

// ============================================================================
// Test: write / read round trip (integration)
// ============================================================================

func TestEventLog_RoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrator := persistence.NewMigrator(db, "../../migrations", observability.NewLogger("migrator"))
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	outputs, eng := runScenario(t)

	writer := persistence.NewEventLogWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	var events []persistence.EventRow
	var journals []persistence.JournalRow
	for _, out := range outputs {
		evt, jrows, err := persistence.FromEngineOutput(out)
		if err != nil {
			t.Fatal(err)
		}
		events = append(events, evt)
		journals = append(journals, jrows...)
	}
	if err := writer.WriteEventBatch(ctx, tx, events); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		t.Fatalf("write journals: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// Idempotent rewrite: conflicting keys are ignored
	tx2, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.WriteEventBatch(ctx, tx2, events); err != nil {
		t.Fatalf("rewrite events: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	entries, err := persistence.NewEventLogReader(db).LoadReplayEntries(ctx)
	if err != nil {
		t.Fatalf("load replay entries: %v", err)
	}
	if len(entries) != len(outputs) {
		t.Fatalf("entries: got %d, want %d", len(entries), len(outputs))
	}

	roles := access.NewRoleRegistry(admin)
	restored := engine.NewWorkflowEngine(0, engine.DefaultConfig(), roles, custody.NewMemoryVault(), nil, nil, nil)
	if err := restored.Restore(entries); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if got, want := restored.GetSequence(), eng.GetSequence(); got != want {
		t.Errorf("sequence: got %d, want %d", got, want)
	}
	if restored.GetStateHash() != eng.GetStateHash() {
		t.Error("state hash mismatch after round trip")
	}
	if got := restored.AvailableLiquidity(assetA); got != 900 {
		t.Errorf("available: got %d, want 900", got)
	}
	rec := restored.InsuranceOf(owner1)
	if rec.Status != insurance.StatusApproved || rec.Payment.YearlyPrice != 50 {
		t.Errorf("record not rebuilt: status=%s price=%d", rec.Status, rec.Payment.YearlyPrice)
	}
}
