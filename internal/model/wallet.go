package model

import (
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	ID            uuid.UUID
	UserID        int64
	Balance       int64
	LockedBalance int64
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type TransactionType string

const (
	TransactionTypeMissionReward TransactionType = "MISSION_REWARD"
	TransactionTypeWithdrawal    TransactionType = "WITHDRAWAL"
	TransactionTypeAdjustment    TransactionType = "ADJUSTMENT"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

const RefTypeMissionRun = "MISSION_RUN"

// WalletTransaction is an append-only ledger entry. The balance_after of a
// wallet's latest entry always equals the wallet's current balance.
type WalletTransaction struct {
	ID             uuid.UUID
	WalletID       uuid.UUID
	Type           TransactionType
	Status         TransactionStatus
	Amount         int64
	BalanceBefore  int64
	BalanceAfter   int64
	RefType        string
	RefID          uuid.UUID
	IdempotencyKey string
	CreatedAt      time.Time
}
