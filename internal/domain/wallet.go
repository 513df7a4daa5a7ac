package domain

import (
	"time"
)

// Wallet holds a customer's prepaid balance. The balance always equals the
// BalanceAfter of the most recent ledger entry.
type Wallet struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	CustomerID string    `json:"customer_id" gorm:"uniqueIndex"`
	Balance    float64   `json:"balance"`
	Currency   string    `json:"currency"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type WalletTransactionType string

const (
	WalletTransactionCredit WalletTransactionType = "credit"
	WalletTransactionDebit  WalletTransactionType = "debit"
	WalletTransactionRefund WalletTransactionType = "refund"
)

type WalletTransactionStatus string

const (
	WalletTransactionPending   WalletTransactionStatus = "pending"
	WalletTransactionCompleted WalletTransactionStatus = "completed"
	WalletTransactionFailed    WalletTransactionStatus = "failed"
)

// WalletTransaction is an append-only ledger row. Before/after balances are
// snapshotted on every entry so the journal audits itself.
type WalletTransaction struct {
	ID            string                  `json:"id" gorm:"primaryKey"`
	WalletID      string                  `json:"wallet_id" gorm:"index"`
	CustomerID    string                  `json:"customer_id" gorm:"index"`
	Type          WalletTransactionType   `json:"type"`
	Amount        float64                 `json:"amount"`
	BalanceBefore float64                 `json:"balance_before"`
	BalanceAfter  float64                 `json:"balance_after"`
	Description   string                  `json:"description"`
	ReferenceID   string                  `json:"reference_id,omitempty" gorm:"index"` // session id for refunds
	Status        WalletTransactionStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
}
