package service

import (
	"context"
	"testing"
	"time"

	"zzik-backend/internal/events"
	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/internal/service/mocks"
	"zzik-backend/pkg/antispoof"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Latitude degrees per meter near the equator, for placing test fixes at a
// known haversine distance from (0, 0).
const latDegreesPerMeter = 1.0 / 111194.926

type gpsFixture struct {
	missions *mocks.MockMissionRepository
	runs     *mocks.MockMissionRunRepository
	service  *VerificationService

	missionID uuid.UUID
	placeID   uuid.UUID
	runID     uuid.UUID
	userID    int64
}

func newGpsFixture(t *testing.T, spec model.VerificationSpec) *gpsFixture {
	t.Helper()

	f := &gpsFixture{
		missions:  &mocks.MockMissionRepository{},
		runs:      &mocks.MockMissionRunRepository{},
		missionID: uuid.New(),
		placeID:   uuid.New(),
		runID:     uuid.New(),
		userID:    42,
	}
	f.service = NewVerificationService(
		f.missions, f.runs, &mocks.MockQrNonceRepository{},
		nil, antispoof.NewMockFlagChecker(), testConfig, events.NopPublisher{},
	)

	f.runs.On("GetMissionRunByID", mock.Anything, f.runID).Return(&model.MissionRun{
		ID:        f.runID,
		MissionID: f.missionID,
		UserID:    f.userID,
		Status:    model.RunStatusPendingGPS,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Maybe()
	f.missions.On("GetMissionByID", mock.Anything, f.missionID).Return(&model.Mission{
		ID:      f.missionID,
		PlaceID: f.placeID,
		Spec:    spec,
		Status:  model.MissionStatusActive,
	}, nil).Maybe()
	f.missions.On("GetPlaceByID", mock.Anything, f.placeID).Return(&model.Place{
		ID:       f.placeID,
		Latitude: 0, Longitude: 0,
	}, nil).Maybe()

	return f
}

func validGpsInput() GpsInput {
	return GpsInput{
		Lat:       10 * latDegreesPerMeter,
		Lng:       0,
		Accuracy:  15,
		Provider:  "fused",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func TestVerifyGps_Validation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(in *GpsInput)
		expectedError error
	}{
		{
			name:          "unparseable timestamp",
			mutate:        func(in *GpsInput) { in.Timestamp = "yesterday" },
			expectedError: ErrGpsTimestampInvalid,
		},
		{
			name: "stale timestamp",
			mutate: func(in *GpsInput) {
				in.Timestamp = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
			},
			expectedError: ErrGpsTimestampInvalid,
		},
		{
			name:          "zero accuracy",
			mutate:        func(in *GpsInput) { in.Accuracy = 0 },
			expectedError: ErrGpsAccuracyInvalid,
		},
		{
			name:          "accuracy above maximum",
			mutate:        func(in *GpsInput) { in.Accuracy = 51 },
			expectedError: ErrGpsAccuracyInvalid,
		},
		{
			name: "far away",
			mutate: func(in *GpsInput) {
				in.Lat = 500 * latDegreesPerMeter
			},
			expectedError: ErrGpsTooFar,
		},
		{
			name:          "mocked fix",
			mutate:        func(in *GpsInput) { in.Mocked = true },
			expectedError: ErrGpsSpoofed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGpsFixture(t, model.VerificationSpec{GPS: true, QR: true})

			in := validGpsInput()
			tt.mutate(&in)

			_, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, in)
			assert.ErrorIs(t, err, tt.expectedError)

			// A rejected fix never advances the run.
			f.runs.AssertNotCalled(t, "AdvanceRunStatus",
				mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyGps_DistanceBoundary(t *testing.T) {
	// maxDistanceMeters=100, accuracy=10: a fix 110m out passes because the
	// accuracy margin covers it; a fix past the margin fails.
	t.Run("at the boundary passes", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true, QR: true})
		f.runs.On("AdvanceRunStatus",
			mock.Anything, f.runID,
			model.RunStatusPendingGPS, model.RunStatusPendingQR,
			repository.ColGpsVerifiedAt, mock.Anything, mock.Anything,
		).Return(nil)

		in := validGpsInput()
		in.Accuracy = 10
		in.Lat = 109.99 * latDegreesPerMeter

		run, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, in)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPendingQR, run.Status)
	})

	t.Run("one meter beyond fails", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true, QR: true})

		in := validGpsInput()
		in.Accuracy = 10
		in.Lat = 111.01 * latDegreesPerMeter

		_, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, in)
		assert.ErrorIs(t, err, ErrGpsTooFar)
	})
}

func TestVerifyGps_Preconditions(t *testing.T) {
	t.Run("not the owner", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true})
		_, err := f.service.VerifyGps(context.Background(), f.runID, 7, validGpsInput())
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("expired run", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true})
		f.runs.ExpectedCalls = nil
		f.runs.On("GetMissionRunByID", mock.Anything, f.runID).Return(&model.MissionRun{
			ID:        f.runID,
			MissionID: f.missionID,
			UserID:    f.userID,
			Status:    model.RunStatusPendingGPS,
			ExpiresAt: time.Now().Add(-time.Minute),
		}, nil)

		_, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, validGpsInput())
		assert.ErrorIs(t, err, ErrMissionRunExpired)
	})

	t.Run("wrong status", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true})
		f.runs.ExpectedCalls = nil
		f.runs.On("GetMissionRunByID", mock.Anything, f.runID).Return(&model.MissionRun{
			ID:        f.runID,
			MissionID: f.missionID,
			UserID:    f.userID,
			Status:    model.RunStatusPendingQR,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		_, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, validGpsInput())
		assert.ErrorIs(t, err, ErrMissionRunInvalidState)
	})

	t.Run("run not found", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true})
		f.runs.ExpectedCalls = nil
		f.runs.On("GetMissionRunByID", mock.Anything, f.runID).Return(nil, repository.ErrNotFound)

		_, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, validGpsInput())
		assert.ErrorIs(t, err, ErrMissionRunNotFound)
	})
}

func TestVerifyGps_Transition(t *testing.T) {
	t.Run("lost race surfaces as invalid state", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true, QR: true})
		f.runs.On("AdvanceRunStatus",
			mock.Anything, f.runID,
			model.RunStatusPendingGPS, model.RunStatusPendingQR,
			repository.ColGpsVerifiedAt, mock.Anything, mock.Anything,
		).Return(repository.ErrRunStatusConflict)

		_, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, validGpsInput())
		assert.ErrorIs(t, err, ErrMissionRunInvalidState)
	})

	t.Run("gps-only mission goes straight to review", func(t *testing.T) {
		f := newGpsFixture(t, model.VerificationSpec{GPS: true})
		f.runs.On("AdvanceRunStatus",
			mock.Anything, f.runID,
			model.RunStatusPendingGPS, model.RunStatusPendingReview,
			repository.ColGpsVerifiedAt, mock.Anything, mock.Anything,
		).Return(nil)

		run, err := f.service.VerifyGps(context.Background(), f.runID, f.userID, validGpsInput())
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPendingReview, run.Status)
		assert.NotNil(t, run.GpsVerifiedAt)
	})
}
