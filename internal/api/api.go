package api

import (
	"errors"
	"net/http"
	"time"

	"zzik-backend/internal/model"
	"zzik-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// respondServiceError translates service sentinels into HTTP status codes.
// Unknown errors become a generic 500 so internals never leak to clients.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrMissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "mission not found"})
	case errors.Is(err, service.ErrMissionRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "mission run not found"})
	case errors.Is(err, service.ErrGpsTimestampInvalid),
		errors.Is(err, service.ErrGpsAccuracyInvalid),
		errors.Is(err, service.ErrGpsTooFar),
		errors.Is(err, service.ErrGpsSpoofed),
		errors.Is(err, service.ErrQrPayloadInvalid),
		errors.Is(err, service.ErrQrMismatch),
		errors.Is(err, service.ErrQrSignatureInvalid),
		errors.Is(err, service.ErrQrNonceNotFound),
		errors.Is(err, service.ErrQrNonceExpired),
		errors.Is(err, service.ErrReelsPlatformUnsupported),
		errors.Is(err, service.ErrReelsURLInvalid),
		errors.Is(err, service.ErrReelsHashtagsMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrQrReplayed):
		c.JSON(http.StatusConflict, gin.H{"error": "qr code already used"})
	case errors.Is(err, service.ErrMissionInactive),
		errors.Is(err, service.ErrMissionLimitReached),
		errors.Is(err, service.ErrMissionRunInvalidState),
		errors.Is(err, service.ErrMissionRunExpired),
		errors.Is(err, service.ErrWalletVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

type runResponse struct {
	RunID     string `json:"run_id"`
	MissionID string `json:"mission_id"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`

	GpsVerifiedAt   *int64 `json:"gps_verified_at"`
	QrVerifiedAt    *int64 `json:"qr_verified_at"`
	ReelsUploadedAt *int64 `json:"reels_uploaded_at"`
	ReviewedAt      *int64 `json:"reviewed_at"`
	RewardedAt      *int64 `json:"rewarded_at"`

	RewardAmount *int64 `json:"reward_amount"`
}

func newRunResponse(run *model.MissionRun) runResponse {
	return runResponse{
		RunID:           run.ID.String(),
		MissionID:       run.MissionID.String(),
		UserID:          run.UserID,
		Status:          string(run.Status),
		ExpiresAt:       run.ExpiresAt.Unix(),
		CreatedAt:       run.CreatedAt.Unix(),
		GpsVerifiedAt:   unixPtr(run.GpsVerifiedAt),
		QrVerifiedAt:    unixPtr(run.QrVerifiedAt),
		ReelsUploadedAt: unixPtr(run.ReelsUploadedAt),
		ReviewedAt:      unixPtr(run.ReviewedAt),
		RewardedAt:      unixPtr(run.RewardedAt),
		RewardAmount:    run.RewardAmount,
	}
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	unix := t.Unix()
	return &unix
}
