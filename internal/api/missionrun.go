package api

import (
	"io"
	"net/http"
	"strconv"

	"zzik-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxQrPayloadBytes caps the raw QR body so a client cannot feed the
// decoder an arbitrarily large blob.
const maxQrPayloadBytes = 4 << 10

type missionRunRoutes struct {
	runs          *service.MissionRunService
	verifications *service.VerificationService
}

func NewMissionRunRoutes(handler *gin.RouterGroup, runs *service.MissionRunService, verifications *service.VerificationService) {
	h := &missionRunRoutes{runs: runs, verifications: verifications}

	handler.POST("/missions/:mission_id/runs", h.StartRun)

	group := handler.Group("/runs")
	{
		group.GET("/:run_id", h.GetRun)
		group.POST("/:run_id/gps", h.VerifyGps)
		group.POST("/:run_id/qr", h.VerifyQr)
		group.POST("/:run_id/reels", h.VerifyReels)
	}
}

type startRunRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *missionRunRoutes) StartRun(c *gin.Context) {
	missionID, err := uuid.Parse(c.Param("mission_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mission_id"})
		return
	}

	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := h.runs.Start(c.Request.Context(), req.UserID, missionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newRunResponse(run))
}

func (h *missionRunRoutes) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
		return
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), runID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunResponse(run))
}

type verifyGpsRequest struct {
	UserID    int64   `json:"user_id" binding:"required"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy"`
	Provider  string  `json:"provider"`
	Mocked    bool    `json:"mocked"`
	DeviceID  string  `json:"device_id"`
	Timestamp string  `json:"timestamp" binding:"required"`
}

func (h *missionRunRoutes) VerifyGps(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
		return
	}

	var req verifyGpsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := h.verifications.VerifyGps(c.Request.Context(), runID, req.UserID, service.GpsInput{
		Lat:       req.Lat,
		Lng:       req.Lng,
		Accuracy:  req.Accuracy,
		Provider:  req.Provider,
		Mocked:    req.Mocked,
		DeviceID:  req.DeviceID,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunResponse(run))
}

type verifyQrRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	// Payload is the decoded QR content, passed through verbatim so the
	// signature check sees exactly what was scanned.
	Payload json.RawMessage `json:"payload" binding:"required"`
}

func (h *missionRunRoutes) VerifyQr(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxQrPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var req verifyQrRequest
	if err := json.Unmarshal(body, &req); err != nil || req.UserID == 0 || len(req.Payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := h.verifications.VerifyQr(c.Request.Context(), runID, req.UserID, req.Payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunResponse(run))
}

type verifyReelsRequest struct {
	UserID   int64    `json:"user_id" binding:"required"`
	Platform string   `json:"platform" binding:"required"`
	URL      string   `json:"url" binding:"required"`
	Hashtags []string `json:"hashtags"`
	Caption  string   `json:"caption"`
}

func (h *missionRunRoutes) VerifyReels(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
		return
	}

	var req verifyReelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := h.verifications.VerifyReels(c.Request.Context(), runID, req.UserID, service.ReelsInput{
		Platform: req.Platform,
		URL:      req.URL,
		Hashtags: req.Hashtags,
		Caption:  req.Caption,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newRunResponse(run))
}
