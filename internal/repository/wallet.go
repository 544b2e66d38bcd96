package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zzik-backend/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type dbWallet struct {
	ID            uuid.UUID `db:"id"`
	UserID        int64     `db:"user_id"`
	Balance       int64     `db:"balance"`
	LockedBalance int64     `db:"locked_balance"`
	Version       int64     `db:"version"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type dbWalletTransaction struct {
	ID             uuid.UUID `db:"id"`
	WalletID       uuid.UUID `db:"wallet_id"`
	Type           string    `db:"type"`
	Status         string    `db:"status"`
	Amount         int64     `db:"amount"`
	BalanceBefore  int64     `db:"balance_before"`
	BalanceAfter   int64     `db:"balance_after"`
	RefType        string    `db:"ref_type"`
	RefID          uuid.UUID `db:"ref_id"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

var walletTransactionColumns = []string{
	"id", "wallet_id", "type", "status", "amount",
	"balance_before", "balance_after", "ref_type", "ref_id",
	"idempotency_key", "created_at",
}

func (w *dbWallet) toModel() *model.Wallet {
	return &model.Wallet{
		ID:            w.ID,
		UserID:        w.UserID,
		Balance:       w.Balance,
		LockedBalance: w.LockedBalance,
		Version:       w.Version,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func (t *dbWalletTransaction) toModel() *model.WalletTransaction {
	return &model.WalletTransaction{
		ID:             t.ID,
		WalletID:       t.WalletID,
		Type:           model.TransactionType(t.Type),
		Status:         model.TransactionStatus(t.Status),
		Amount:         t.Amount,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		RefType:        t.RefType,
		RefID:          t.RefID,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
	}
}

// GetOrCreateWallet returns the user's wallet, creating it with a zero
// balance on first reward. The insert tolerates a concurrent create via
// ON CONFLICT DO NOTHING followed by a re-read.
func (r *Repository) GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	wallet, err := r.getWalletByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	insertQuery, insertArgs, err := squirrel.
		Insert("wallets").
		SetMap(map[string]interface{}{
			"id":             uuid.New(),
			"user_id":        userID,
			"balance":        0,
			"locked_balance": 0,
			"version":        1,
			"created_at":     now,
			"updated_at":     now,
		}).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return nil, fmt.Errorf("failed to insert wallet: %w", err)
	}

	return r.getWalletByUserID(ctx, userID)
}

func (r *Repository) getWalletByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	query, args, err := squirrel.
		Select("id", "user_id", "balance", "locked_balance", "version", "created_at", "updated_at").
		From("wallets").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet query: %w", err)
	}

	var wallet dbWallet
	err = r.db.GetContext(ctx, &wallet, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return wallet.toModel(), nil
}

// GetRewardTransaction finds an existing reward ledger entry either by its
// idempotency key or by the run it pays for. Used to make approval retries
// return the original result instead of paying twice.
func (r *Repository) GetRewardTransaction(ctx context.Context, idempotencyKey string, runID uuid.UUID) (*model.WalletTransaction, error) {
	query, args, err := squirrel.
		Select(walletTransactionColumns...).
		From("wallet_transactions").
		Where(squirrel.Or{
			squirrel.Eq{"idempotency_key": idempotencyKey},
			squirrel.And{
				squirrel.Eq{
					"ref_type": model.RefTypeMissionRun,
					"ref_id":   runID,
					"type":     string(model.TransactionTypeMissionReward),
				},
				squirrel.Eq{"status": []string{
					string(model.TransactionStatusCompleted),
					string(model.TransactionStatusPending),
				}},
			},
		}).
		OrderBy("created_at").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction query: %w", err)
	}

	var txn dbWalletTransaction
	err = r.db.GetContext(ctx, &txn, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet transaction: %w", err)
	}

	return txn.toModel(), nil
}

// PayReward executes the approval payout as one transaction, in a fixed
// order: run transition first, ledger append second, balance update last.
// The run transition is conditioned on PENDING_REVIEW, the ledger insert on
// the idempotency key's uniqueness, and the balance write on the wallet
// version read by the caller. Any zero-row result aborts the whole unit.
func (r *Repository) PayReward(ctx context.Context, runID uuid.UUID, wallet *model.Wallet, amount int64, idempotencyKey string, now time.Time) (*model.WalletTransaction, error) {
	txn := &model.WalletTransaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		Type:           model.TransactionTypeMissionReward,
		Status:         model.TransactionStatusCompleted,
		Amount:         amount,
		BalanceBefore:  wallet.Balance,
		BalanceAfter:   wallet.Balance + amount,
		RefType:        model.RefTypeMissionRun,
		RefID:          runID,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		runQuery, runArgs, err := squirrel.
			Update("mission_runs").
			SetMap(map[string]interface{}{
				"status":          string(model.RunStatusApproved),
				"reviewed_at":     now,
				"rewarded_at":     now,
				"reward_amount":   amount,
				"active_lock_key": nil,
				"updated_at":      now,
			}).
			Where(squirrel.Eq{
				"id":     runID,
				"status": string(model.RunStatusPendingReview),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build run approve query: %w", err)
		}

		result, err := tx.ExecContext(ctx, runQuery, runArgs...)
		if err != nil {
			return fmt.Errorf("failed to approve run: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return ErrRunStatusConflict
		}

		insertQuery, insertArgs, err := squirrel.
			Insert("wallet_transactions").
			SetMap(map[string]interface{}{
				"id":              txn.ID,
				"wallet_id":       txn.WalletID,
				"type":            string(txn.Type),
				"status":          string(txn.Status),
				"amount":          txn.Amount,
				"balance_before":  txn.BalanceBefore,
				"balance_after":   txn.BalanceAfter,
				"ref_type":        txn.RefType,
				"ref_id":          txn.RefID,
				"idempotency_key": txn.IdempotencyKey,
				"created_at":      txn.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build transaction insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			if isUniqueViolation(err) {
				return ErrRewardExists
			}
			return fmt.Errorf("failed to insert wallet transaction: %w", err)
		}

		walletQuery, walletArgs, err := squirrel.
			Update("wallets").
			Set("balance", txn.BalanceAfter).
			Set("version", squirrel.Expr("version + 1")).
			Set("updated_at", now).
			Where(squirrel.Eq{
				"id":      wallet.ID,
				"version": wallet.Version,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build wallet update query: %w", err)
		}

		result, err = tx.ExecContext(ctx, walletQuery, walletArgs...)
		if err != nil {
			return fmt.Errorf("failed to update wallet balance: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return ErrWalletVersionConflict
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// FinalizeRunApproval completes the PENDING_REVIEW -> APPROVED transition
// for a run whose reward transaction already exists, stamping it with the
// original transaction's timestamp. Used when a prior approval paid out but
// the caller never saw the response.
func (r *Repository) FinalizeRunApproval(ctx context.Context, runID uuid.UUID, amount int64, rewardedAt time.Time) error {
	query, args, err := squirrel.
		Update("mission_runs").
		SetMap(map[string]interface{}{
			"status":          string(model.RunStatusApproved),
			"reviewed_at":     rewardedAt,
			"rewarded_at":     rewardedAt,
			"reward_amount":   amount,
			"active_lock_key": nil,
			"updated_at":      time.Now().UTC(),
		}).
		Where(squirrel.Eq{
			"id":     runID,
			"status": string(model.RunStatusPendingReview),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build run finalize query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finalize run approval: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrRunStatusConflict
	}

	return nil
}
