package service

import (
	"context"
	"errors"
	"time"

	"zzik-backend/internal/model"

	"github.com/google/uuid"
)

var (
	ErrMissionNotFound     = errors.New("mission not found")
	ErrMissionInactive     = errors.New("mission is not active")
	ErrMissionLimitReached = errors.New("mission run limit reached")

	ErrMissionRunNotFound     = errors.New("mission run not found")
	ErrMissionRunInvalidState = errors.New("mission run is in the wrong state")
	ErrMissionRunExpired      = errors.New("mission run expired")
	ErrPermissionDenied       = errors.New("permission denied")

	ErrGpsTimestampInvalid = errors.New("gps timestamp is missing, malformed or stale")
	ErrGpsAccuracyInvalid  = errors.New("gps accuracy is out of range")
	ErrGpsTooFar           = errors.New("gps fix is too far from the place")
	ErrGpsSpoofed          = errors.New("gps fix flagged as spoofed")

	ErrQrPayloadInvalid   = errors.New("qr payload is malformed")
	ErrQrMismatch         = errors.New("qr payload does not match the run's mission or place")
	ErrQrSignatureInvalid = errors.New("qr signature verification failed")
	ErrQrNonceNotFound    = errors.New("qr nonce not found")
	ErrQrNonceExpired     = errors.New("qr nonce expired")
	ErrQrReplayed         = errors.New("qr nonce already used")

	ErrReelsPlatformUnsupported = errors.New("unsupported reels platform")
	ErrReelsURLInvalid          = errors.New("reels url is not a valid short-video link")
	ErrReelsHashtagsMissing     = errors.New("required hashtags are missing")

	ErrWalletVersionConflict = errors.New("wallet update lost the version race")
)

// Config carries the verification tuning knobs. Distances and accuracy are
// meters.
type Config struct {
	MaxGpsAge         time.Duration
	MaxAccuracyMeters float64
	MaxDistanceMeters float64
	RunTTL            time.Duration
	NonceTTL          time.Duration
}

type MissionRepository interface {
	GetMissionByID(ctx context.Context, missionID uuid.UUID) (*model.Mission, error)
	GetPlaceByID(ctx context.Context, placeID uuid.UUID) (*model.Place, error)
}

type MissionRunRepository interface {
	CreateMissionRun(ctx context.Context, run *model.MissionRun, maxRunsPerUser *int) error
	GetMissionRunByID(ctx context.Context, runID uuid.UUID) (*model.MissionRun, error)
	AdvanceRunStatus(ctx context.Context, runID uuid.UUID, from, to model.RunStatus, stampColumn string, stamp time.Time, extra map[string]interface{}) error
}

type QrNonceRepository interface {
	CreateQrNonce(ctx context.Context, nonce *model.QrNonce) error
	ConsumeNonceAndAdvanceRun(ctx context.Context, nonce string, userID int64, runID uuid.UUID, from, to model.RunStatus, now time.Time) error
}

type WalletRepository interface {
	GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	GetRewardTransaction(ctx context.Context, idempotencyKey string, runID uuid.UUID) (*model.WalletTransaction, error)
	PayReward(ctx context.Context, runID uuid.UUID, wallet *model.Wallet, amount int64, idempotencyKey string, now time.Time) (*model.WalletTransaction, error)
	FinalizeRunApproval(ctx context.Context, runID uuid.UUID, amount int64, rewardedAt time.Time) error
}
