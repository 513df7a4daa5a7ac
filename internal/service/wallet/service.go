package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/observability/telemetry"
	"github.com/voltgrid/csms/internal/ports"
)

// Service manages prepaid balances. Every balance change goes through the
// ledger; refunds are idempotent per reference id so a retried stop can never
// pay a customer twice.
type Service struct {
	repo     ports.WalletRepository
	currency string
	log      *zap.Logger
}

func NewService(repo ports.WalletRepository, currency string, log *zap.Logger) *Service {
	if currency == "" {
		currency = "EUR"
	}
	return &Service{
		repo:     repo,
		currency: currency,
		log:      log,
	}
}

// GetOrCreateWallet returns the customer's wallet, creating an empty one on
// first contact.
func (s *Service) GetOrCreateWallet(ctx context.Context, customerID string) (*domain.Wallet, error) {
	if customerID == "" {
		return nil, domain.ValidationError("customer id is required")
	}

	w, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	w = &domain.Wallet{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Balance:    0,
		Currency:   s.currency,
		UpdatedAt:  time.Now(),
	}
	if err := s.repo.Save(ctx, w); err != nil {
		return nil, err
	}

	s.log.Info("Created wallet",
		zap.String("wallet_id", w.ID),
		zap.String("customer_id", customerID),
	)
	return w, nil
}

func (s *Service) Debit(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ValidationError("debit amount must be positive, got %.2f", amount)
	}

	w, err := s.GetOrCreateWallet(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if w.Balance < amount {
		return nil, domain.InsufficientFundsError(w.Balance, amount)
	}

	entry := s.apply(w, domain.WalletTransactionDebit, -amount, description, referenceID)
	if err := s.repo.ApplyTransaction(ctx, w, entry); err != nil {
		return nil, err
	}
	telemetry.WalletOperationsTotal.WithLabelValues("debit", "completed").Inc()

	s.log.Info("Debited wallet",
		zap.String("customer_id", customerID),
		zap.Float64("amount", amount),
		zap.Float64("balance", w.Balance),
		zap.String("reference_id", referenceID),
	)
	return entry, nil
}

func (s *Service) Credit(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ValidationError("credit amount must be positive, got %.2f", amount)
	}

	w, err := s.GetOrCreateWallet(ctx, customerID)
	if err != nil {
		return nil, err
	}

	entry := s.apply(w, domain.WalletTransactionCredit, amount, description, referenceID)
	if err := s.repo.ApplyTransaction(ctx, w, entry); err != nil {
		return nil, err
	}
	telemetry.WalletOperationsTotal.WithLabelValues("credit", "completed").Inc()

	s.log.Info("Credited wallet",
		zap.String("customer_id", customerID),
		zap.Float64("amount", amount),
		zap.Float64("balance", w.Balance),
	)
	return entry, nil
}

// Refund returns reserved funds to the customer. The referenceID (the session
// id) makes it idempotent: if a refund row for the reference already exists,
// that row is returned and the balance is untouched.
func (s *Service) Refund(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error) {
	if referenceID == "" {
		return nil, domain.ValidationError("refund requires a reference id")
	}
	if amount < 0 {
		return nil, domain.ValidationError("refund amount cannot be negative, got %.2f", amount)
	}

	existing, err := s.repo.FindTransactionByReference(ctx, customerID, referenceID, domain.WalletTransactionRefund)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Info("Refund already applied, skipping",
			zap.String("customer_id", customerID),
			zap.String("reference_id", referenceID),
		)
		return existing, nil
	}
	if amount == 0 {
		return nil, nil
	}

	w, err := s.GetOrCreateWallet(ctx, customerID)
	if err != nil {
		return nil, err
	}

	entry := s.apply(w, domain.WalletTransactionRefund, amount, description, referenceID)
	if err := s.repo.ApplyTransaction(ctx, w, entry); err != nil {
		return nil, err
	}
	telemetry.WalletOperationsTotal.WithLabelValues("refund", "completed").Inc()

	s.log.Info("Refunded wallet",
		zap.String("customer_id", customerID),
		zap.Float64("amount", amount),
		zap.Float64("balance", w.Balance),
		zap.String("reference_id", referenceID),
	)
	return entry, nil
}

func (s *Service) Transactions(ctx context.Context, customerID string, limit, offset int) ([]domain.WalletTransaction, error) {
	w, err := s.GetOrCreateWallet(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, w.ID, limit, offset)
}

// apply mutates the in-memory wallet and builds the matching ledger row.
// delta is signed; the transaction Amount is always positive.
func (s *Service) apply(w *domain.Wallet, txType domain.WalletTransactionType, delta float64, description, referenceID string) *domain.WalletTransaction {
	before := w.Balance
	w.Balance += delta
	w.UpdatedAt = time.Now()

	amount := delta
	if amount < 0 {
		amount = -amount
	}

	return &domain.WalletTransaction{
		ID:            uuid.New().String(),
		WalletID:      w.ID,
		CustomerID:    w.CustomerID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  w.Balance,
		Description:   description,
		ReferenceID:   referenceID,
		Status:        domain.WalletTransactionCompleted,
		CreatedAt:     time.Now(),
	}
}
