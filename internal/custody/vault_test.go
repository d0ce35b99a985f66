package custody_test

import (
	"testing"

	"CoverLedger/internal/custody"

	"github.com/ethereum/go-ethereum/common"
)

var (
	assetA = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	holder = common.HexToAddress("0x1111111111111111111111111111111111111111")
	payee  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestMemoryVault_TransferInPullsBalanceAndAllowance(t *testing.T) {
	v := custody.NewMemoryVault()
	v.Mint(assetA, holder, 1000)
	v.Approve(assetA, holder, 600)

	if err := v.TransferIn(assetA, holder, 400); err != nil {
		t.Fatalf("transfer in: %v", err)
	}

	if got := v.BalanceOf(assetA, holder); got != 600 {
		t.Errorf("holder balance: got %d, want 600", got)
	}
	if got := v.CustodyOf(assetA); got != 400 {
		t.Errorf("custody: got %d, want 400", got)
	}
}

func TestMemoryVault_TransferInFailsAtomically(t *testing.T) {
	v := custody.NewMemoryVault()
	v.Mint(assetA, holder, 100)
	v.Approve(assetA, holder, 1000)

	// Insufficient balance
	if err := v.TransferIn(assetA, holder, 500); err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if got := v.BalanceOf(assetA, holder); got != 100 {
		t.Errorf("balance changed on failed transfer: %d", got)
	}
	if got := v.CustodyOf(assetA); got != 0 {
		t.Errorf("custody changed on failed transfer: %d", got)
	}

	// Insufficient allowance
	v.Mint(assetA, holder, 900)
	v.Approve(assetA, holder, 10)
	if err := v.TransferIn(assetA, holder, 500); err == nil {
		t.Fatal("expected insufficient allowance error")
	}
	if got := v.BalanceOf(assetA, holder); got != 1000 {
		t.Errorf("balance changed on failed transfer: %d", got)
	}
}

func TestMemoryVault_TransferOut(t *testing.T) {
	v := custody.NewMemoryVault()
	v.Mint(assetA, holder, 500)
	v.Approve(assetA, holder, 500)
	if err := v.TransferIn(assetA, holder, 500); err != nil {
		t.Fatal(err)
	}

	if err := v.TransferOut(assetA, payee, 200); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if got := v.BalanceOf(assetA, payee); got != 200 {
		t.Errorf("payee balance: got %d, want 200", got)
	}
	if got := v.CustodyOf(assetA); got != 300 {
		t.Errorf("custody: got %d, want 300", got)
	}

	// Overdraw custody
	if err := v.TransferOut(assetA, payee, 1000); err == nil {
		t.Fatal("expected custody overdraw error")
	}
	if got := v.CustodyOf(assetA); got != 300 {
		t.Errorf("custody changed on failed transfer: %d", got)
	}
}

func TestMemoryVault_RejectsNonPositiveAmounts(t *testing.T) {
	v := custody.NewMemoryVault()

	if err := v.TransferIn(assetA, holder, 0); err == nil {
		t.Error("zero transfer in should fail")
	}
	if err := v.TransferOut(assetA, payee, -5); err == nil {
		t.Error("negative transfer out should fail")
	}
}
