package service

import (
	"context"
	"fmt"

	"zzik-backend/internal/events"
	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/pkg/metrics"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// walletRetryAttempts bounds the optimistic-lock retry loop around the
// payout. Each attempt re-reads the wallet before trying again.
const walletRetryAttempts = 3

type RewardService struct {
	missions MissionRepository
	runs     MissionRunRepository
	wallets  WalletRepository
	events   events.Publisher
}

func NewRewardService(missions MissionRepository, runs MissionRunRepository, wallets WalletRepository, publisher events.Publisher) *RewardService {
	return &RewardService{
		missions: missions,
		runs:     runs,
		wallets:  wallets,
		events:   publisher,
	}
}

// DefaultIdempotencyKey derives the approval idempotency key when the
// caller supplies none.
func DefaultIdempotencyKey(runID uuid.UUID) string {
	return fmt.Sprintf("mission-run:%s:approve", runID)
}

// RewardResult is the outcome of an approval: the approved run and the
// ledger entry that paid it. Transaction is nil only when the run was
// already approved through a different idempotency key.
type RewardResult struct {
	Run         *model.MissionRun
	Transaction *model.WalletTransaction
}

// ApproveAndReward moves a PENDING_REVIEW run to APPROVED and credits the
// user's wallet exactly once per idempotency key. Retried calls return the
// original result; a lost wallet-version race is retried a bounded number
// of times before surfacing as ErrWalletVersionConflict.
func (s *RewardService) ApproveAndReward(ctx context.Context, runID uuid.UUID, idempotencyKey string) (*RewardResult, error) {
	if idempotencyKey == "" {
		idempotencyKey = DefaultIdempotencyKey(runID)
	}

	run, err := s.runs.GetMissionRunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMissionRunNotFound
		}
		return nil, fmt.Errorf("failed to get mission run: %w", err)
	}

	existing, err := s.wallets.GetRewardTransaction(ctx, idempotencyKey, runID)
	if err == nil {
		return s.finishExisting(ctx, run, existing)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up reward transaction: %w", err)
	}

	if run.Status == model.RunStatusApproved {
		return &RewardResult{Run: run}, nil
	}
	if run.Status != model.RunStatusPendingReview {
		return nil, ErrMissionRunInvalidState
	}

	mission, err := s.missions.GetMissionByID(ctx, run.MissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	for attempt := 0; attempt < walletRetryAttempts; attempt++ {
		wallet, err := s.wallets.GetOrCreateWallet(ctx, run.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get wallet: %w", err)
		}

		now := nowUTC()
		txn, err := s.wallets.PayReward(ctx, runID, wallet, mission.RewardAmount, idempotencyKey, now)
		if err == nil {
			metrics.RewardsPaid.Inc()
			metrics.RewardAmount.Add(float64(mission.RewardAmount))
			s.events.Publish(events.Event{
				Type: "mission_run_approved",
				Data: events.RunStateChange{
					RunID:     run.ID.String(),
					MissionID: run.MissionID.String(),
					UserID:    run.UserID,
					From:      string(model.RunStatusPendingReview),
					To:        string(model.RunStatusApproved),
				},
			})

			run.Status = model.RunStatusApproved
			run.ReviewedAt = &now
			run.RewardedAt = &now
			run.RewardAmount = &mission.RewardAmount
			run.ActiveLockKey = nil
			run.UpdatedAt = now
			return &RewardResult{Run: run, Transaction: txn}, nil
		}

		switch {
		case errors.Is(err, repository.ErrWalletVersionConflict):
			continue
		case errors.Is(err, repository.ErrRewardExists), errors.Is(err, repository.ErrRunStatusConflict):
			// A concurrent approval got there first. If it left a ledger
			// entry for this run, the call is a duplicate and returns the
			// original result.
			existing, lookupErr := s.wallets.GetRewardTransaction(ctx, idempotencyKey, runID)
			if lookupErr != nil {
				if errors.Is(lookupErr, repository.ErrNotFound) {
					return nil, ErrMissionRunInvalidState
				}
				return nil, fmt.Errorf("failed to look up reward transaction: %w", lookupErr)
			}
			return s.finishExisting(ctx, run, existing)
		default:
			return nil, fmt.Errorf("failed to pay reward: %w", err)
		}
	}

	return nil, ErrWalletVersionConflict
}

// finishExisting handles the already-paid path: if the prior approval
// credited the wallet but the run transition never landed (e.g. the caller
// timed out between the two), finish it with the original transaction's
// timestamp, then return the recorded result.
func (s *RewardService) finishExisting(ctx context.Context, run *model.MissionRun, existing *model.WalletTransaction) (*RewardResult, error) {
	if run.Status == model.RunStatusPendingReview {
		err := s.wallets.FinalizeRunApproval(ctx, run.ID, existing.Amount, existing.CreatedAt)
		if err != nil && !errors.Is(err, repository.ErrRunStatusConflict) {
			return nil, fmt.Errorf("failed to finalize run approval: %w", err)
		}

		refreshed, err := s.runs.GetMissionRunByID(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get mission run: %w", err)
		}
		run = refreshed
	}

	return &RewardResult{Run: run, Transaction: existing}, nil
}
