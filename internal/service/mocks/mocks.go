package mocks

import (
	"context"
	"time"

	"zzik-backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockMissionRepository struct {
	mock.Mock
}

func (m *MockMissionRepository) GetMissionByID(ctx context.Context, missionID uuid.UUID) (*model.Mission, error) {
	args := m.Called(ctx, missionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Mission), args.Error(1)
}

func (m *MockMissionRepository) GetPlaceByID(ctx context.Context, placeID uuid.UUID) (*model.Place, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Place), args.Error(1)
}

type MockMissionRunRepository struct {
	mock.Mock
}

func (m *MockMissionRunRepository) CreateMissionRun(ctx context.Context, run *model.MissionRun, maxRunsPerUser *int) error {
	args := m.Called(ctx, run, maxRunsPerUser)
	return args.Error(0)
}

func (m *MockMissionRunRepository) GetMissionRunByID(ctx context.Context, runID uuid.UUID) (*model.MissionRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MissionRun), args.Error(1)
}

func (m *MockMissionRunRepository) AdvanceRunStatus(ctx context.Context, runID uuid.UUID, from, to model.RunStatus, stampColumn string, stamp time.Time, extra map[string]interface{}) error {
	args := m.Called(ctx, runID, from, to, stampColumn, stamp, extra)
	return args.Error(0)
}

type MockQrNonceRepository struct {
	mock.Mock
}

func (m *MockQrNonceRepository) CreateQrNonce(ctx context.Context, nonce *model.QrNonce) error {
	args := m.Called(ctx, nonce)
	return args.Error(0)
}

func (m *MockQrNonceRepository) ConsumeNonceAndAdvanceRun(ctx context.Context, nonce string, userID int64, runID uuid.UUID, from, to model.RunStatus, now time.Time) error {
	args := m.Called(ctx, nonce, userID, runID, from, to, now)
	return args.Error(0)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetRewardTransaction(ctx context.Context, idempotencyKey string, runID uuid.UUID) (*model.WalletTransaction, error) {
	args := m.Called(ctx, idempotencyKey, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletTransaction), args.Error(1)
}

func (m *MockWalletRepository) PayReward(ctx context.Context, runID uuid.UUID, wallet *model.Wallet, amount int64, idempotencyKey string, now time.Time) (*model.WalletTransaction, error) {
	args := m.Called(ctx, runID, wallet, amount, idempotencyKey, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WalletTransaction), args.Error(1)
}

func (m *MockWalletRepository) FinalizeRunApproval(ctx context.Context, runID uuid.UUID, amount int64, rewardedAt time.Time) error {
	args := m.Called(ctx, runID, amount, rewardedAt)
	return args.Error(0)
}
