package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPendingGPS    RunStatus = "PENDING_GPS"
	RunStatusPendingQR     RunStatus = "PENDING_QR"
	RunStatusPendingReels  RunStatus = "PENDING_REELS"
	RunStatusPendingReview RunStatus = "PENDING_REVIEW"
	RunStatusApproved      RunStatus = "APPROVED"
	RunStatusRejected      RunStatus = "REJECTED"
)

// Terminal reports whether a run can never change again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusApproved || s == RunStatusRejected
}

type MissionRun struct {
	ID              uuid.UUID
	MissionID       uuid.UUID
	UserID          int64
	Status          RunStatus
	GpsVerifiedAt   *time.Time
	QrVerifiedAt    *time.Time
	ReelsUploadedAt *time.Time
	ReviewedAt      *time.Time
	RewardedAt      *time.Time
	ExpiresAt       time.Time
	ActiveLockKey   *string
	RewardAmount    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Expired reports whether the run's verification window has passed at t.
func (r *MissionRun) Expired(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// ActiveLockKey encodes "this user has a live run for this mission". The
// column carrying it has a uniqueness constraint, which is what resolves
// concurrent starts.
func ActiveLockKey(missionID uuid.UUID, userID int64) string {
	return fmt.Sprintf("mission-run:%s:%d", missionID, userID)
}
