package model

import (
	"time"

	"github.com/google/uuid"
)

type MissionStatus string

const (
	MissionStatusActive MissionStatus = "ACTIVE"
	MissionStatusPaused MissionStatus = "PAUSED"
	MissionStatusEnded  MissionStatus = "ENDED"
)

// VerificationSpec declares which proof steps a mission requires. Step order
// is fixed: gps, then qr, then reels, skipping steps that are not required.
type VerificationSpec struct {
	GPS   bool
	QR    bool
	Reels bool
}

// FirstStatus returns the status a fresh run starts in.
func (s VerificationSpec) FirstStatus() RunStatus {
	switch {
	case s.GPS:
		return RunStatusPendingGPS
	case s.QR:
		return RunStatusPendingQR
	case s.Reels:
		return RunStatusPendingReels
	default:
		return RunStatusPendingReview
	}
}

// NextStatus returns the status a run moves to once the step behind current
// is verified. It is total: review and terminal statuses map to themselves.
func (s VerificationSpec) NextStatus(current RunStatus) RunStatus {
	switch current {
	case RunStatusPendingGPS:
		switch {
		case s.QR:
			return RunStatusPendingQR
		case s.Reels:
			return RunStatusPendingReels
		default:
			return RunStatusPendingReview
		}
	case RunStatusPendingQR:
		if s.Reels {
			return RunStatusPendingReels
		}
		return RunStatusPendingReview
	case RunStatusPendingReels:
		return RunStatusPendingReview
	default:
		return current
	}
}

type Mission struct {
	ID             uuid.UUID
	PlaceID        uuid.UUID
	Title          string
	RewardAmount   int64
	Spec           VerificationSpec
	MaxRunsPerUser *int
	Status         MissionStatus
	StartAt        *time.Time
	EndAt          *time.Time
	CreatedAt      time.Time
}

// ActiveAt reports whether the mission accepts new runs at t.
func (m *Mission) ActiveAt(t time.Time) bool {
	if m.Status != MissionStatusActive {
		return false
	}
	if m.StartAt != nil && t.Before(*m.StartAt) {
		return false
	}
	if m.EndAt != nil && t.After(*m.EndAt) {
		return false
	}
	return true
}

type Place struct {
	ID        uuid.UUID
	Latitude  float64
	Longitude float64
	Category  string
}
