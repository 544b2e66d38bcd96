package service

import (
	"context"
	"fmt"
	"time"

	"zzik-backend/internal/events"
	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/pkg/metrics"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultRunTTL = time.Hour

type MissionRunService struct {
	missions MissionRepository
	runs     MissionRunRepository
	cfg      Config
	events   events.Publisher
}

func NewMissionRunService(missions MissionRepository, runs MissionRunRepository, cfg Config, publisher events.Publisher) *MissionRunService {
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = defaultRunTTL
	}
	return &MissionRunService{
		missions: missions,
		runs:     runs,
		cfg:      cfg,
		events:   publisher,
	}
}

// Start creates a new run for the user on the mission. The quota and the
// one-active-run rule are both enforced inside the repository's transaction;
// a uniqueness-constraint loss surfaces here identically to a failed
// pre-check.
func (s *MissionRunService) Start(ctx context.Context, userID int64, missionID uuid.UUID) (*model.MissionRun, error) {
	mission, err := s.missions.GetMissionByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMissionNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	now := time.Now().UTC()
	if !mission.ActiveAt(now) {
		return nil, ErrMissionInactive
	}

	expiresAt := now.Add(s.cfg.RunTTL)
	if mission.EndAt != nil && mission.EndAt.Before(expiresAt) {
		expiresAt = *mission.EndAt
	}

	lockKey := model.ActiveLockKey(missionID, userID)
	run := &model.MissionRun{
		ID:            uuid.New(),
		MissionID:     missionID,
		UserID:        userID,
		Status:        mission.Spec.FirstStatus(),
		ExpiresAt:     expiresAt,
		ActiveLockKey: &lockKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.runs.CreateMissionRun(ctx, run, mission.MaxRunsPerUser)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRunLimitReached),
			errors.Is(err, repository.ErrActiveRunExists):
			return nil, ErrMissionLimitReached
		default:
			return nil, fmt.Errorf("failed to create mission run: %w", err)
		}
	}

	metrics.RunsStarted.Inc()
	s.events.Publish(events.Event{
		Type: "mission_run_started",
		Data: events.RunStateChange{
			RunID:     run.ID.String(),
			MissionID: missionID.String(),
			UserID:    userID,
			To:        string(run.Status),
		},
	})

	return run, nil
}

// GetRun returns a run to its owner.
func (s *MissionRunService) GetRun(ctx context.Context, runID uuid.UUID, userID int64) (*model.MissionRun, error) {
	run, err := s.runs.GetMissionRunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMissionRunNotFound
		}
		return nil, fmt.Errorf("failed to get mission run: %w", err)
	}
	if run.UserID != userID {
		return nil, ErrPermissionDenied
	}
	return run, nil
}
