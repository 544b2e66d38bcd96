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
	"github.com/lib/pq"
)

// Timestamp columns stamped by the guarded status transitions.
const (
	ColGpsVerifiedAt   = "gps_verified_at"
	ColQrVerifiedAt    = "qr_verified_at"
	ColReelsUploadedAt = "reels_uploaded_at"
)

type dbMissionRun struct {
	ID              uuid.UUID      `db:"id"`
	MissionID       uuid.UUID      `db:"mission_id"`
	UserID          int64          `db:"user_id"`
	Status          string         `db:"status"`
	GpsVerifiedAt   *time.Time     `db:"gps_verified_at"`
	QrVerifiedAt    *time.Time     `db:"qr_verified_at"`
	ReelsUploadedAt *time.Time     `db:"reels_uploaded_at"`
	ReviewedAt      *time.Time     `db:"reviewed_at"`
	RewardedAt      *time.Time     `db:"rewarded_at"`
	ExpiresAt       time.Time      `db:"expires_at"`
	ActiveLockKey   *string        `db:"active_lock_key"`
	RewardAmount    *int64         `db:"reward_amount"`
	ReelsURL        *string        `db:"reels_url"`
	ReelsHashtags   pq.StringArray `db:"reels_hashtags"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

var missionRunColumns = []string{
	"id", "mission_id", "user_id", "status",
	"gps_verified_at", "qr_verified_at", "reels_uploaded_at",
	"reviewed_at", "rewarded_at", "expires_at",
	"active_lock_key", "reward_amount", "reels_url", "reels_hashtags",
	"created_at", "updated_at",
}

func (run *dbMissionRun) toModel() *model.MissionRun {
	return &model.MissionRun{
		ID:              run.ID,
		MissionID:       run.MissionID,
		UserID:          run.UserID,
		Status:          model.RunStatus(run.Status),
		GpsVerifiedAt:   run.GpsVerifiedAt,
		QrVerifiedAt:    run.QrVerifiedAt,
		ReelsUploadedAt: run.ReelsUploadedAt,
		ReviewedAt:      run.ReviewedAt,
		RewardedAt:      run.RewardedAt,
		ExpiresAt:       run.ExpiresAt,
		ActiveLockKey:   run.ActiveLockKey,
		RewardAmount:    run.RewardAmount,
		CreatedAt:       run.CreatedAt,
		UpdatedAt:       run.UpdatedAt,
	}
}

// CreateMissionRun inserts a new run after re-checking the per-user quota
// inside the same transaction. The quota counts approved and in-flight runs;
// only rejected runs free up an attempt. A concurrent start racing past the
// count is stopped by the uniqueness constraint on active_lock_key and
// surfaces as ErrActiveRunExists.
func (r *Repository) CreateMissionRun(ctx context.Context, run *model.MissionRun, maxRunsPerUser *int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if maxRunsPerUser != nil {
			countQuery, countArgs, err := squirrel.
				Select("count(*)").
				From("mission_runs").
				Where(squirrel.And{
					squirrel.Eq{
						"mission_id": run.MissionID,
						"user_id":    run.UserID,
					},
					squirrel.NotEq{"status": string(model.RunStatusRejected)},
				}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build run count query: %w", err)
			}

			var count int
			if err := tx.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
				return fmt.Errorf("failed to count runs: %w", err)
			}
			if count >= *maxRunsPerUser {
				return ErrRunLimitReached
			}
		}

		insertQuery, insertArgs, err := squirrel.
			Insert("mission_runs").
			SetMap(map[string]interface{}{
				"id":              run.ID,
				"mission_id":      run.MissionID,
				"user_id":         run.UserID,
				"status":          string(run.Status),
				"expires_at":      run.ExpiresAt,
				"active_lock_key": run.ActiveLockKey,
				"created_at":      run.CreatedAt,
				"updated_at":      run.UpdatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build run insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			if isUniqueViolation(err) {
				return ErrActiveRunExists
			}
			return fmt.Errorf("failed to insert mission run: %w", err)
		}

		return nil
	})
}

func (r *Repository) GetMissionRunByID(ctx context.Context, runID uuid.UUID) (*model.MissionRun, error) {
	query, args, err := squirrel.
		Select(missionRunColumns...).
		From("mission_runs").
		Where(squirrel.Eq{"id": runID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}

	var run dbMissionRun
	err = r.db.GetContext(ctx, &run, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mission run: %w", err)
	}

	return run.toModel(), nil
}

// AdvanceRunStatus performs the guarded transition from one status to the
// next: the update is conditioned on the current status, and zero affected
// rows means another call already moved the run. stampColumn names the step
// timestamp set exactly once by this transition; extra carries additional
// columns (e.g. the submitted reel URL).
func (r *Repository) AdvanceRunStatus(ctx context.Context, runID uuid.UUID, from, to model.RunStatus, stampColumn string, stamp time.Time, extra map[string]interface{}) error {
	return advanceRunStatus(ctx, r.db, runID, from, to, stampColumn, stamp, extra)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func advanceRunStatus(ctx context.Context, db execer, runID uuid.UUID, from, to model.RunStatus, stampColumn string, stamp time.Time, extra map[string]interface{}) error {
	set := map[string]interface{}{
		"status":     string(to),
		stampColumn:  stamp,
		"updated_at": stamp,
	}
	if to.Terminal() {
		set["active_lock_key"] = nil
	}
	for col, val := range extra {
		if tags, ok := val.([]string); ok {
			set[col] = pq.StringArray(tags)
			continue
		}
		set[col] = val
	}

	query, args, err := squirrel.
		Update("mission_runs").
		SetMap(set).
		Where(squirrel.Eq{
			"id":     runID,
			"status": string(from),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build run update query: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
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
