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
	"zzik-backend/pkg/qrsign"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type qrFixture struct {
	missions *mocks.MockMissionRepository
	runs     *mocks.MockMissionRunRepository
	nonces   *mocks.MockQrNonceRepository
	signer   *qrsign.Signer
	service  *VerificationService

	missionID uuid.UUID
	placeID   uuid.UUID
	runID     uuid.UUID
	userID    int64
}

func newQrFixture(t *testing.T, spec model.VerificationSpec) *qrFixture {
	t.Helper()

	f := &qrFixture{
		missions:  &mocks.MockMissionRepository{},
		runs:      &mocks.MockMissionRunRepository{},
		nonces:    &mocks.MockQrNonceRepository{},
		signer:    qrsign.NewSigner("test-secret"),
		missionID: uuid.New(),
		placeID:   uuid.New(),
		runID:     uuid.New(),
		userID:    42,
	}
	f.service = NewVerificationService(
		f.missions, f.runs, f.nonces,
		f.signer, antispoof.NewMockFlagChecker(), testConfig, events.NopPublisher{},
	)

	f.runs.On("GetMissionRunByID", mock.Anything, f.runID).Return(&model.MissionRun{
		ID:        f.runID,
		MissionID: f.missionID,
		UserID:    f.userID,
		Status:    model.RunStatusPendingQR,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Maybe()
	f.missions.On("GetMissionByID", mock.Anything, f.missionID).Return(&model.Mission{
		ID:      f.missionID,
		PlaceID: f.placeID,
		Spec:    spec,
		Status:  model.MissionStatusActive,
	}, nil).Maybe()

	return f
}

func (f *qrFixture) signedPayload(t *testing.T, mutate func(p *model.QrPayload)) []byte {
	t.Helper()

	payload := model.QrPayload{
		MissionID: f.missionID.String(),
		PlaceID:   f.placeID.String(),
		Nonce:     "nonce-1",
		IssuedAt:  time.Now().Unix(),
	}
	payload.Signature = f.signer.Sign(payload.MissionID, payload.PlaceID, payload.Nonce, payload.IssuedAt)
	if mutate != nil {
		mutate(&payload)
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func TestVerifyQr_PayloadValidation(t *testing.T) {
	tests := []struct {
		name          string
		payload       func(f *qrFixture, t *testing.T) []byte
		expectedError error
	}{
		{
			name: "malformed json",
			payload: func(f *qrFixture, t *testing.T) []byte {
				return []byte("{not json")
			},
			expectedError: ErrQrPayloadInvalid,
		},
		{
			name: "missing nonce",
			payload: func(f *qrFixture, t *testing.T) []byte {
				return f.signedPayload(t, func(p *model.QrPayload) { p.Nonce = "" })
			},
			expectedError: ErrQrPayloadInvalid,
		},
		{
			name: "mission mismatch",
			payload: func(f *qrFixture, t *testing.T) []byte {
				return f.signedPayload(t, func(p *model.QrPayload) { p.MissionID = uuid.NewString() })
			},
			expectedError: ErrQrMismatch,
		},
		{
			name: "place mismatch",
			payload: func(f *qrFixture, t *testing.T) []byte {
				return f.signedPayload(t, func(p *model.QrPayload) { p.PlaceID = uuid.NewString() })
			},
			expectedError: ErrQrMismatch,
		},
		{
			name: "tampered signature",
			payload: func(f *qrFixture, t *testing.T) []byte {
				return f.signedPayload(t, func(p *model.QrPayload) { p.Signature = "deadbeef" })
			},
			expectedError: ErrQrSignatureInvalid,
		},
		{
			name: "tampered timestamp",
			payload: func(f *qrFixture, t *testing.T) []byte {
				return f.signedPayload(t, func(p *model.QrPayload) { p.IssuedAt++ })
			},
			expectedError: ErrQrSignatureInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newQrFixture(t, model.VerificationSpec{GPS: true, QR: true, Reels: true})

			_, err := f.service.VerifyQr(context.Background(), f.runID, f.userID, tt.payload(f, t))
			assert.ErrorIs(t, err, tt.expectedError)

			f.nonces.AssertNotCalled(t, "ConsumeNonceAndAdvanceRun",
				mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyQr_NonceOutcomes(t *testing.T) {
	tests := []struct {
		name          string
		repoError     error
		expectedError error
	}{
		{"unknown nonce", repository.ErrNonceNotFound, ErrQrNonceNotFound},
		{"expired nonce", repository.ErrNonceExpired, ErrQrNonceExpired},
		{"replayed nonce", repository.ErrNonceUsed, ErrQrReplayed},
		{"lost transition race", repository.ErrRunStatusConflict, ErrMissionRunInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newQrFixture(t, model.VerificationSpec{GPS: true, QR: true, Reels: true})
			f.nonces.On("ConsumeNonceAndAdvanceRun",
				mock.Anything, "nonce-1", f.userID, f.runID,
				model.RunStatusPendingQR, model.RunStatusPendingReels, mock.Anything,
			).Return(tt.repoError)

			_, err := f.service.VerifyQr(context.Background(), f.runID, f.userID, f.signedPayload(t, nil))
			assert.ErrorIs(t, err, tt.expectedError)
		})
	}
}

func TestVerifyQr_Success(t *testing.T) {
	t.Run("advances to reels", func(t *testing.T) {
		f := newQrFixture(t, model.VerificationSpec{GPS: true, QR: true, Reels: true})
		f.nonces.On("ConsumeNonceAndAdvanceRun",
			mock.Anything, "nonce-1", f.userID, f.runID,
			model.RunStatusPendingQR, model.RunStatusPendingReels, mock.Anything,
		).Return(nil)

		run, err := f.service.VerifyQr(context.Background(), f.runID, f.userID, f.signedPayload(t, nil))
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPendingReels, run.Status)
		assert.NotNil(t, run.QrVerifiedAt)
	})

	t.Run("advances to review when reels not required", func(t *testing.T) {
		f := newQrFixture(t, model.VerificationSpec{GPS: true, QR: true})
		f.nonces.On("ConsumeNonceAndAdvanceRun",
			mock.Anything, "nonce-1", f.userID, f.runID,
			model.RunStatusPendingQR, model.RunStatusPendingReview, mock.Anything,
		).Return(nil)

		run, err := f.service.VerifyQr(context.Background(), f.runID, f.userID, f.signedPayload(t, nil))
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPendingReview, run.Status)
	})
}

func TestIssueQr(t *testing.T) {
	t.Run("mission not found", func(t *testing.T) {
		f := newQrFixture(t, model.VerificationSpec{QR: true})
		unknown := uuid.New()
		f.missions.On("GetMissionByID", mock.Anything, unknown).Return(nil, repository.ErrNotFound)

		_, err := f.service.IssueQr(context.Background(), unknown)
		assert.ErrorIs(t, err, ErrMissionNotFound)
	})

	t.Run("mints a signed single-use code", func(t *testing.T) {
		f := newQrFixture(t, model.VerificationSpec{QR: true})

		var created *model.QrNonce
		f.nonces.On("CreateQrNonce", mock.Anything, mock.MatchedBy(func(n *model.QrNonce) bool {
			created = n
			return n.MissionID == f.missionID && n.PlaceID == f.placeID && n.Nonce != ""
		})).Return(nil)

		issued, err := f.service.IssueQr(context.Background(), f.missionID)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.WithinDuration(t, time.Now().Add(testConfig.NonceTTL), created.ExpiresAt, 5*time.Second)
		assert.NotEmpty(t, issued.PNG)

		var payload model.QrPayload
		require.NoError(t, json.Unmarshal(issued.Payload, &payload))
		assert.Equal(t, created.Nonce, payload.Nonce)
		assert.True(t, f.signer.Verify(payload.MissionID, payload.PlaceID, payload.Nonce, payload.IssuedAt, payload.Signature))
	})
}
