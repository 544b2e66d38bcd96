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

type dbQrNonce struct {
	Nonce     string     `db:"nonce"`
	MissionID uuid.UUID  `db:"mission_id"`
	PlaceID   uuid.UUID  `db:"place_id"`
	UsedAt    *time.Time `db:"used_at"`
	UsedBy    *int64     `db:"used_by"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func (r *Repository) CreateQrNonce(ctx context.Context, nonce *model.QrNonce) error {
	query, args, err := squirrel.
		Insert("qr_nonces").
		SetMap(map[string]interface{}{
			"nonce":      nonce.Nonce,
			"mission_id": nonce.MissionID,
			"place_id":   nonce.PlaceID,
			"expires_at": nonce.ExpiresAt,
			"created_at": nonce.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build nonce insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert qr nonce: %w", err)
	}

	return nil
}

// ConsumeNonceAndAdvanceRun marks a nonce used and advances the run in one
// transaction. The consume is a single conditional update: two concurrent
// scans of the same physical code resolve to exactly one winner, and the
// loser's zero-row result is classified by a follow-up read. If the run
// transition then fails, the whole transaction rolls back and the nonce
// stays unused.
func (r *Repository) ConsumeNonceAndAdvanceRun(ctx context.Context, nonce string, userID int64, runID uuid.UUID, from, to model.RunStatus, now time.Time) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		consumeQuery, consumeArgs, err := squirrel.
			Update("qr_nonces").
			Set("used_at", now).
			Set("used_by", userID).
			Where(squirrel.And{
				squirrel.Eq{
					"nonce":   nonce,
					"used_at": nil,
				},
				squirrel.Gt{"expires_at": now},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build nonce consume query: %w", err)
		}

		result, err := tx.ExecContext(ctx, consumeQuery, consumeArgs...)
		if err != nil {
			return fmt.Errorf("failed to consume nonce: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}

		if rows == 0 {
			var status dbQrNonce

			checkQuery, checkArgs, err := squirrel.
				Select("nonce", "mission_id", "place_id", "used_at", "used_by", "expires_at", "created_at").
				From("qr_nonces").
				Where(squirrel.Eq{"nonce": nonce}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build nonce check query: %w", err)
			}

			err = tx.GetContext(ctx, &status, checkQuery, checkArgs...)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNonceNotFound
				}
				return fmt.Errorf("failed to check nonce status: %w", err)
			}

			if status.UsedAt != nil {
				return ErrNonceUsed
			}
			return ErrNonceExpired
		}

		return advanceRunStatus(ctx, tx, runID, from, to, ColQrVerifiedAt, now, nil)
	})
}
