package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

type WalletRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWalletRepository(db *gorm.DB, log *zap.Logger) ports.WalletRepository {
	return &WalletRepository{
		db:  db,
		log: log,
	}
}

func (r *WalletRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.WithContext(ctx).First(&w, "customer_id = ?", customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) Save(ctx context.Context, w *domain.Wallet) error {
	return r.db.WithContext(ctx).Save(w).Error
}

// ApplyTransaction persists the mutated balance and appends the ledger row
// in one database transaction, so the journal can never disagree with the
// balance.
func (r *WalletRepository) ApplyTransaction(ctx context.Context, w *domain.Wallet, entry *domain.WalletTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(w).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (r *WalletRepository) FindTransactionByReference(ctx context.Context, customerID, referenceID string, txType domain.WalletTransactionType) (*domain.WalletTransaction, error) {
	var entry domain.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND reference_id = ? AND type = ?", customerID, referenceID, txType).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *WalletRepository) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]domain.WalletTransaction, error) {
	var entries []domain.WalletTransaction
	q := r.db.WithContext(ctx).Where("wallet_id = ?", walletID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&entries).Error
	return entries, err
}
