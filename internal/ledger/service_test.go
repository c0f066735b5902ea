package ledger

import (
	"path/filepath"
	"testing"
)

func newTestLedger(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create ledger service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestWalletLinkLifecycle(t *testing.T) {
	svc := newTestLedger(t)

	_, ok, err := svc.WalletLink("U1")
	if err != nil {
		t.Fatalf("wallet link: %v", err)
	}
	if ok {
		t.Fatalf("expected no link yet")
	}

	if err := svc.SaveWalletLink("U1", "alice.testnet"); err != nil {
		t.Fatalf("save link: %v", err)
	}
	account, ok, err := svc.WalletLink("U1")
	if err != nil || !ok || account != "alice.testnet" {
		t.Fatalf("got (%q, %v, %v)", account, ok, err)
	}

	// Re-link replaces the account.
	if err := svc.SaveWalletLink("U1", "alice2.testnet"); err != nil {
		t.Fatalf("re-link: %v", err)
	}
	account, _, _ = svc.WalletLink("U1")
	if account != "alice2.testnet" {
		t.Fatalf("account after re-link = %q", account)
	}
}

func TestRewardTargetsArePerUser(t *testing.T) {
	svc := newTestLedger(t)

	if err := svc.SetRewardTarget("UA", "UTARGET1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetRewardTarget("UB", "UTARGET2"); err != nil {
		t.Fatal(err)
	}

	target, ok, err := svc.RewardTarget("UA")
	if err != nil || !ok || target != "UTARGET1" {
		t.Fatalf("UA target = (%q, %v, %v)", target, ok, err)
	}
	target, ok, _ = svc.RewardTarget("UB")
	if !ok || target != "UTARGET2" {
		t.Fatalf("UB target = %q", target)
	}
	if _, ok, _ := svc.RewardTarget("UC"); ok {
		t.Fatalf("UC should have no target")
	}
}

func TestMarkTxProcessedIsIdempotent(t *testing.T) {
	svc := newTestLedger(t)

	first, err := svc.MarkTxProcessed("HASH1", "send_reward")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !first {
		t.Fatalf("first claim should win")
	}

	replay, err := svc.MarkTxProcessed("HASH1", "send_reward")
	if err != nil {
		t.Fatalf("replay mark: %v", err)
	}
	if replay {
		t.Fatalf("replayed hash must not be claimed twice")
	}

	other, err := svc.MarkTxProcessed("HASH2", "create_nomination")
	if err != nil || !other {
		t.Fatalf("independent hash should claim: (%v, %v)", other, err)
	}
}

func TestInteractionAudit(t *testing.T) {
	svc := newTestLedger(t)

	if err := svc.RecordInteraction("trace1", "U1", "balance", "ok"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordInteraction("trace2", "U2", "withdraw", "gateway error"); err != nil {
		t.Fatalf("record: %v", err)
	}
	n, err := svc.InteractionCount()
	if err != nil || n != 2 {
		t.Fatalf("count = (%d, %v)", n, err)
	}
}
