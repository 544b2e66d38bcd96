package service

import (
	"context"
	"testing"
	"time"

	"zzik-backend/internal/events"
	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	MaxGpsAge:         5 * time.Minute,
	MaxAccuracyMeters: 50,
	MaxDistanceMeters: 100,
	RunTTL:            time.Hour,
	NonceTTL:          24 * time.Hour,
}

func TestMissionRunService_Start(t *testing.T) {
	missionID := uuid.New()
	userID := int64(42)

	activeMission := func() *model.Mission {
		return &model.Mission{
			ID:           missionID,
			PlaceID:      uuid.New(),
			RewardAmount: 1000,
			Spec:         model.VerificationSpec{GPS: true, QR: true, Reels: true},
			Status:       model.MissionStatusActive,
		}
	}

	tests := []struct {
		name          string
		mockSetup     func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository)
		expectedError error
		checkRun      func(t *testing.T, run *model.MissionRun)
	}{
		{
			name: "mission not found",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				missions.On("GetMissionByID", mock.Anything, missionID).
					Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrMissionNotFound,
		},
		{
			name: "mission paused",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				mission := activeMission()
				mission.Status = model.MissionStatusPaused
				missions.On("GetMissionByID", mock.Anything, missionID).Return(mission, nil)
			},
			expectedError: ErrMissionInactive,
		},
		{
			name: "mission window not yet open",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				mission := activeMission()
				startAt := time.Now().Add(time.Hour)
				mission.StartAt = &startAt
				missions.On("GetMissionByID", mock.Anything, missionID).Return(mission, nil)
			},
			expectedError: ErrMissionInactive,
		},
		{
			name: "active run exists",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				missions.On("GetMissionByID", mock.Anything, missionID).Return(activeMission(), nil)
				runs.On("CreateMissionRun", mock.Anything, mock.Anything, mock.Anything).
					Return(repository.ErrActiveRunExists)
			},
			expectedError: ErrMissionLimitReached,
		},
		{
			name: "quota exhausted",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				missions.On("GetMissionByID", mock.Anything, missionID).Return(activeMission(), nil)
				runs.On("CreateMissionRun", mock.Anything, mock.Anything, mock.Anything).
					Return(repository.ErrRunLimitReached)
			},
			expectedError: ErrMissionLimitReached,
		},
		{
			name: "success starts at the first required step",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				missions.On("GetMissionByID", mock.Anything, missionID).Return(activeMission(), nil)
				runs.On("CreateMissionRun", mock.Anything, mock.MatchedBy(func(run *model.MissionRun) bool {
					return run.MissionID == missionID &&
						run.UserID == userID &&
						run.Status == model.RunStatusPendingGPS &&
						run.ActiveLockKey != nil &&
						*run.ActiveLockKey == model.ActiveLockKey(missionID, userID)
				}), mock.Anything).Return(nil)
			},
			checkRun: func(t *testing.T, run *model.MissionRun) {
				assert.Equal(t, model.RunStatusPendingGPS, run.Status)
				assert.WithinDuration(t, time.Now().Add(time.Hour), run.ExpiresAt, 5*time.Second)
			},
		},
		{
			name: "success skips unrequired steps",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				mission := activeMission()
				mission.Spec = model.VerificationSpec{Reels: true}
				missions.On("GetMissionByID", mock.Anything, missionID).Return(mission, nil)
				runs.On("CreateMissionRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
			checkRun: func(t *testing.T, run *model.MissionRun) {
				assert.Equal(t, model.RunStatusPendingReels, run.Status)
			},
		},
		{
			name: "expiry capped at mission end",
			mockSetup: func(missions *mocks.MockMissionRepository, runs *mocks.MockMissionRunRepository) {
				mission := activeMission()
				endAt := time.Now().Add(10 * time.Minute).UTC()
				mission.EndAt = &endAt
				missions.On("GetMissionByID", mock.Anything, missionID).Return(mission, nil)
				runs.On("CreateMissionRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			},
			checkRun: func(t *testing.T, run *model.MissionRun) {
				assert.WithinDuration(t, time.Now().Add(10*time.Minute), run.ExpiresAt, 5*time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missions := &mocks.MockMissionRepository{}
			runs := &mocks.MockMissionRunRepository{}
			service := NewMissionRunService(missions, runs, testConfig, events.NopPublisher{})

			tt.mockSetup(missions, runs)

			run, err := service.Start(context.Background(), userID, missionID)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				require.NoError(t, err)
				require.NotNil(t, run)
				if tt.checkRun != nil {
					tt.checkRun(t, run)
				}
			}

			missions.AssertExpectations(t)
			runs.AssertExpectations(t)
		})
	}
}

func TestMissionRunService_GetRun(t *testing.T) {
	runID := uuid.New()

	t.Run("owner can read", func(t *testing.T) {
		runs := &mocks.MockMissionRunRepository{}
		service := NewMissionRunService(&mocks.MockMissionRepository{}, runs, testConfig, events.NopPublisher{})

		runs.On("GetMissionRunByID", mock.Anything, runID).
			Return(&model.MissionRun{ID: runID, UserID: 42}, nil)

		run, err := service.GetRun(context.Background(), runID, 42)
		require.NoError(t, err)
		assert.Equal(t, runID, run.ID)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		runs := &mocks.MockMissionRunRepository{}
		service := NewMissionRunService(&mocks.MockMissionRepository{}, runs, testConfig, events.NopPublisher{})

		runs.On("GetMissionRunByID", mock.Anything, runID).
			Return(&model.MissionRun{ID: runID, UserID: 42}, nil)

		_, err := service.GetRun(context.Background(), runID, 7)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("missing run", func(t *testing.T) {
		runs := &mocks.MockMissionRunRepository{}
		service := NewMissionRunService(&mocks.MockMissionRepository{}, runs, testConfig, events.NopPublisher{})

		runs.On("GetMissionRunByID", mock.Anything, runID).
			Return(nil, repository.ErrNotFound)

		_, err := service.GetRun(context.Background(), runID, 42)
		assert.ErrorIs(t, err, ErrMissionRunNotFound)
	})
}
