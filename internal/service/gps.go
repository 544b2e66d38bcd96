package service

import (
	"context"
	"fmt"
	"time"

	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/pkg/antispoof"
	"zzik-backend/pkg/geo"
	"zzik-backend/pkg/metrics"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// GpsInput is one client-reported GPS fix. Timestamp is the client clock in
// RFC 3339.
type GpsInput struct {
	Lat       float64
	Lng       float64
	Accuracy  float64
	Provider  string
	Mocked    bool
	DeviceID  string
	Timestamp string
}

func (s *VerificationService) VerifyGps(ctx context.Context, runID uuid.UUID, userID int64, in GpsInput) (*model.MissionRun, error) {
	run, err := s.verifyGps(ctx, runID, userID, in)
	if err != nil {
		metrics.VerificationRejected("gps")
		return nil, err
	}
	metrics.VerificationOK("gps")
	return run, nil
}

func (s *VerificationService) verifyGps(ctx context.Context, runID uuid.UUID, userID int64, in GpsInput) (*model.MissionRun, error) {
	run, mission, err := s.loadOwnedRun(ctx, runID, userID, model.RunStatusPendingGPS)
	if err != nil {
		return nil, err
	}
	if !mission.Spec.GPS {
		return nil, ErrMissionRunInvalidState
	}

	now := nowUTC()

	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return nil, errors.Wrap(ErrGpsTimestampInvalid, "unparseable timestamp")
	}
	if now.Sub(ts) > s.cfg.MaxGpsAge {
		return nil, errors.Wrap(ErrGpsTimestampInvalid, "fix is too old")
	}

	if in.Accuracy <= 0 || in.Accuracy > s.cfg.MaxAccuracyMeters {
		return nil, errors.Wrapf(ErrGpsAccuracyInvalid, "accuracy %.1fm", in.Accuracy)
	}

	place, err := s.missions.GetPlaceByID(ctx, mission.PlaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	// The reported accuracy is subtracted as a confidence margin: a
	// low-precision fix near the boundary gets the benefit of the doubt up
	// to its stated error.
	distance := geo.HaversineMeters(in.Lat, in.Lng, place.Latitude, place.Longitude)
	if distance-in.Accuracy > s.cfg.MaxDistanceMeters {
		return nil, errors.Wrapf(ErrGpsTooFar, "distance %.1fm", distance)
	}

	check := s.spoof.Check(ctx, antispoof.Sample{
		Lat:       in.Lat,
		Lng:       in.Lng,
		Accuracy:  in.Accuracy,
		Provider:  in.Provider,
		Mocked:    in.Mocked,
		DeviceID:  in.DeviceID,
		Timestamp: ts,
	})
	if !check.OK {
		return nil, errors.Wrap(ErrGpsSpoofed, check.Reason)
	}

	next := mission.Spec.NextStatus(model.RunStatusPendingGPS)
	err = s.runs.AdvanceRunStatus(ctx, runID, model.RunStatusPendingGPS, next, repository.ColGpsVerifiedAt, now, nil)
	if err != nil {
		if errors.Is(err, repository.ErrRunStatusConflict) {
			return nil, ErrMissionRunInvalidState
		}
		return nil, fmt.Errorf("failed to advance run: %w", err)
	}

	s.publishTransition(run, model.RunStatusPendingGPS, next)

	run.Status = next
	run.GpsVerifiedAt = &now
	run.UpdatedAt = now
	return run, nil
}
