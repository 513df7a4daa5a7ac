package wallet

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// repoWithWallet wires a mock repository around a single in-memory wallet and
// records applied ledger entries.
func repoWithWallet(w *domain.Wallet) (*mocks.MockWalletRepository, *[]domain.WalletTransaction) {
	applied := &[]domain.WalletTransaction{}
	repo := &mocks.MockWalletRepository{
		FindByCustomerIDFunc: func(_ context.Context, customerID string) (*domain.Wallet, error) {
			if w != nil && w.CustomerID == customerID {
				return w, nil
			}
			return nil, nil
		},
		ApplyTransactionFunc: func(_ context.Context, _ *domain.Wallet, entry *domain.WalletTransaction) error {
			*applied = append(*applied, *entry)
			return nil
		},
	}
	return repo, applied
}

func TestGetOrCreateWalletCreatesOnFirstContact(t *testing.T) {
	var saved *domain.Wallet
	repo := &mocks.MockWalletRepository{
		SaveFunc: func(_ context.Context, w *domain.Wallet) error {
			saved = w
			return nil
		},
	}
	svc := NewService(repo, "EUR", newTestLogger())

	w, err := svc.GetOrCreateWallet(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if saved == nil {
		t.Fatal("expected wallet to be saved")
	}
	if w.Balance != 0 {
		t.Errorf("expected zero starting balance, got %.2f", w.Balance)
	}
	if w.Currency != "EUR" {
		t.Errorf("expected EUR, got %s", w.Currency)
	}
}

func TestDebitHappyPath(t *testing.T) {
	w := &domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 100}
	repo, applied := repoWithWallet(w)
	svc := NewService(repo, "EUR", newTestLogger())

	entry, err := svc.Debit(context.Background(), "cust-1", 80, "session reservation", "cs-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w.Balance != 20 {
		t.Errorf("expected balance 20, got %.2f", w.Balance)
	}
	if entry.BalanceBefore != 100 || entry.BalanceAfter != 20 {
		t.Errorf("bad balance snapshot: before=%.2f after=%.2f", entry.BalanceBefore, entry.BalanceAfter)
	}
	if entry.Amount != 80 {
		t.Errorf("expected ledger amount 80, got %.2f", entry.Amount)
	}
	if entry.Type != domain.WalletTransactionDebit {
		t.Errorf("expected debit entry, got %s", entry.Type)
	}
	if len(*applied) != 1 {
		t.Errorf("expected 1 ledger row, got %d", len(*applied))
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	w := &domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 50}
	repo, applied := repoWithWallet(w)
	svc := NewService(repo, "EUR", newTestLogger())

	_, err := svc.Debit(context.Background(), "cust-1", 80, "session reservation", "cs-1")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("expected insufficient funds, got %v", err)
	}
	if w.Balance != 50 {
		t.Errorf("balance must be untouched, got %.2f", w.Balance)
	}
	if len(*applied) != 0 {
		t.Error("no ledger row may be written on a rejected debit")
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	repo, _ := repoWithWallet(&domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 50})
	svc := NewService(repo, "EUR", newTestLogger())

	for _, amount := range []float64{0, -10} {
		if _, err := svc.Debit(context.Background(), "cust-1", amount, "", ""); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("amount %.2f: expected validation error, got %v", amount, err)
		}
	}
}

func TestRefundIsIdempotentPerReference(t *testing.T) {
	w := &domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 20}
	repo, applied := repoWithWallet(w)

	prior := &domain.WalletTransaction{ID: "tx-1", ReferenceID: "cs-1", Type: domain.WalletTransactionRefund, Amount: 56.4}
	repo.FindTransactionByReferenceFunc = func(_ context.Context, _, referenceID string, txType domain.WalletTransactionType) (*domain.WalletTransaction, error) {
		if referenceID == "cs-1" && txType == domain.WalletTransactionRefund {
			return prior, nil
		}
		return nil, nil
	}
	svc := NewService(repo, "EUR", newTestLogger())

	entry, err := svc.Refund(context.Background(), "cust-1", 56.4, "unused reservation", "cs-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry.ID != "tx-1" {
		t.Errorf("expected the prior refund row back, got %s", entry.ID)
	}
	if w.Balance != 20 {
		t.Errorf("balance must be untouched on a repeat refund, got %.2f", w.Balance)
	}
	if len(*applied) != 0 {
		t.Error("no second ledger row may be written")
	}
}

func TestRefundAppliesOnce(t *testing.T) {
	w := &domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 20}
	repo, applied := repoWithWallet(w)
	svc := NewService(repo, "EUR", newTestLogger())

	entry, err := svc.Refund(context.Background(), "cust-1", 56.4, "unused reservation", "cs-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if math.Abs(w.Balance-76.4) > 1e-9 {
		t.Errorf("expected balance 76.4, got %.2f", w.Balance)
	}
	if entry.Type != domain.WalletTransactionRefund {
		t.Errorf("expected refund entry, got %s", entry.Type)
	}
	if len(*applied) != 1 {
		t.Errorf("expected 1 ledger row, got %d", len(*applied))
	}
}

func TestRefundZeroAmountIsNoop(t *testing.T) {
	w := &domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 20}
	repo, applied := repoWithWallet(w)
	svc := NewService(repo, "EUR", newTestLogger())

	entry, err := svc.Refund(context.Background(), "cust-1", 0, "fully consumed", "cs-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry != nil {
		t.Error("expected no ledger entry for a zero refund")
	}
	if len(*applied) != 0 {
		t.Error("no ledger row may be written for a zero refund")
	}
}

func TestCreditTopUp(t *testing.T) {
	w := &domain.Wallet{ID: "w-1", CustomerID: "cust-1", Balance: 10}
	repo, _ := repoWithWallet(w)
	svc := NewService(repo, "EUR", newTestLogger())

	entry, err := svc.Credit(context.Background(), "cust-1", 40, "top-up", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w.Balance != 50 {
		t.Errorf("expected balance 50, got %.2f", w.Balance)
	}
	if entry.Type != domain.WalletTransactionCredit {
		t.Errorf("expected credit entry, got %s", entry.Type)
	}
}
