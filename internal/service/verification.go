package service

import (
	"context"
	"fmt"
	"time"

	"zzik-backend/internal/events"
	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/pkg/antispoof"
	"zzik-backend/pkg/qrsign"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// VerificationService runs the three proof steps of a mission run. Each
// step re-checks ownership, expiry and the exact expected status before any
// mutation, and advances the run with a conditional update.
type VerificationService struct {
	missions MissionRepository
	runs     MissionRunRepository
	nonces   QrNonceRepository
	signer   *qrsign.Signer
	spoof    antispoof.Checker
	cfg      Config
	events   events.Publisher
}

func NewVerificationService(
	missions MissionRepository,
	runs MissionRunRepository,
	nonces QrNonceRepository,
	signer *qrsign.Signer,
	spoof antispoof.Checker,
	cfg Config,
	publisher events.Publisher,
) *VerificationService {
	return &VerificationService{
		missions: missions,
		runs:     runs,
		nonces:   nonces,
		signer:   signer,
		spoof:    spoof,
		cfg:      cfg,
		events:   publisher,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// loadOwnedRun fetches the run and its mission and applies the shared step
// preconditions: the caller owns the run, the run is not expired, and the
// run sits exactly in expected.
func (s *VerificationService) loadOwnedRun(ctx context.Context, runID uuid.UUID, userID int64, expected model.RunStatus) (*model.MissionRun, *model.Mission, error) {
	run, err := s.runs.GetMissionRunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrMissionRunNotFound
		}
		return nil, nil, fmt.Errorf("failed to get mission run: %w", err)
	}

	if run.UserID != userID {
		return nil, nil, ErrPermissionDenied
	}
	if run.Expired(nowUTC()) {
		return nil, nil, ErrMissionRunExpired
	}
	if run.Status != expected {
		return nil, nil, ErrMissionRunInvalidState
	}

	mission, err := s.missions.GetMissionByID(ctx, run.MissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get mission: %w", err)
	}

	return run, mission, nil
}

func (s *VerificationService) publishTransition(run *model.MissionRun, from, to model.RunStatus) {
	s.events.Publish(events.Event{
		Type: "mission_run_state_changed",
		Data: events.RunStateChange{
			RunID:     run.ID.String(),
			MissionID: run.MissionID.String(),
			UserID:    run.UserID,
			From:      string(from),
			To:        string(to),
		},
	})
}
