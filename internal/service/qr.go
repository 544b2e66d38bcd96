package service

import (
	"context"
	"fmt"

	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

func (s *VerificationService) VerifyQr(ctx context.Context, runID uuid.UUID, userID int64, rawPayload []byte) (*model.MissionRun, error) {
	run, err := s.verifyQr(ctx, runID, userID, rawPayload)
	if err != nil {
		metrics.VerificationRejected("qr")
		return nil, err
	}
	metrics.VerificationOK("qr")
	return run, nil
}

func (s *VerificationService) verifyQr(ctx context.Context, runID uuid.UUID, userID int64, rawPayload []byte) (*model.MissionRun, error) {
	run, mission, err := s.loadOwnedRun(ctx, runID, userID, model.RunStatusPendingQR)
	if err != nil {
		return nil, err
	}
	if !mission.Spec.QR {
		return nil, ErrMissionRunInvalidState
	}

	var payload model.QrPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, errors.Wrap(ErrQrPayloadInvalid, err.Error())
	}
	if payload.MissionID == "" || payload.PlaceID == "" || payload.Nonce == "" || payload.Signature == "" {
		return nil, errors.Wrap(ErrQrPayloadInvalid, "missing fields")
	}

	payloadMissionID, err := uuid.Parse(payload.MissionID)
	if err != nil {
		return nil, errors.Wrap(ErrQrPayloadInvalid, "bad mission id")
	}
	payloadPlaceID, err := uuid.Parse(payload.PlaceID)
	if err != nil {
		return nil, errors.Wrap(ErrQrPayloadInvalid, "bad place id")
	}
	if payloadMissionID != run.MissionID || payloadPlaceID != mission.PlaceID {
		return nil, ErrQrMismatch
	}

	if !s.signer.Verify(payload.MissionID, payload.PlaceID, payload.Nonce, payload.IssuedAt, payload.Signature) {
		return nil, ErrQrSignatureInvalid
	}

	now := nowUTC()
	next := mission.Spec.NextStatus(model.RunStatusPendingQR)

	err = s.nonces.ConsumeNonceAndAdvanceRun(ctx, payload.Nonce, userID, runID, model.RunStatusPendingQR, next, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNonceNotFound):
			return nil, ErrQrNonceNotFound
		case errors.Is(err, repository.ErrNonceExpired):
			return nil, ErrQrNonceExpired
		case errors.Is(err, repository.ErrNonceUsed):
			return nil, ErrQrReplayed
		case errors.Is(err, repository.ErrRunStatusConflict):
			return nil, ErrMissionRunInvalidState
		default:
			return nil, fmt.Errorf("failed to consume nonce: %w", err)
		}
	}

	s.publishTransition(run, model.RunStatusPendingQR, next)

	run.Status = next
	run.QrVerifiedAt = &now
	run.UpdatedAt = now
	return run, nil
}

// IssuedQr is a freshly minted venue QR code: the signed payload plus its
// PNG rendering.
type IssuedQr struct {
	Nonce   *model.QrNonce
	Payload []byte
	PNG     []byte
}

// IssueQr mints a single-use nonce for a mission's place, signs the payload
// and renders the QR image. This is the out-of-band producer side of the QR
// step.
func (s *VerificationService) IssueQr(ctx context.Context, missionID uuid.UUID) (*IssuedQr, error) {
	mission, err := s.missions.GetMissionByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMissionNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	now := nowUTC()
	nonce := &model.QrNonce{
		Nonce:     uuid.NewString(),
		MissionID: mission.ID,
		PlaceID:   mission.PlaceID,
		ExpiresAt: now.Add(s.cfg.NonceTTL),
		CreatedAt: now,
	}

	if err := s.nonces.CreateQrNonce(ctx, nonce); err != nil {
		return nil, fmt.Errorf("failed to create nonce: %w", err)
	}

	payload := model.QrPayload{
		MissionID: mission.ID.String(),
		PlaceID:   mission.PlaceID.String(),
		Nonce:     nonce.Nonce,
		IssuedAt:  now.Unix(),
	}
	payload.Signature = s.signer.Sign(payload.MissionID, payload.PlaceID, payload.Nonce, payload.IssuedAt)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	png, err := qrcode.Encode(string(raw), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}

	return &IssuedQr{
		Nonce:   nonce,
		Payload: raw,
		PNG:     png,
	}, nil
}
