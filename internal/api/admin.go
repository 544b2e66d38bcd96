package api

import (
	"encoding/base64"
	"net/http"

	"zzik-backend/internal/middleware"
	"zzik-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type adminRoutes struct {
	rewards       *service.RewardService
	verifications *service.VerificationService
}

func NewAdminRoutes(handler *gin.RouterGroup, rewards *service.RewardService, verifications *service.VerificationService, auth *middleware.Authorization) {
	h := &adminRoutes{rewards: rewards, verifications: verifications}

	admin := handler.Group("/admin")
	admin.Use(auth.AdminOnly())
	{
		admin.POST("/runs/:run_id/approve", h.ApproveRun)
		admin.POST("/missions/:mission_id/qr", h.IssueQr)
	}
}

type approveRunRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type approveRunResponse struct {
	Run         runResponse  `json:"run"`
	Transaction *txnResponse `json:"transaction"`
}

type txnResponse struct {
	TransactionID  string `json:"transaction_id"`
	Amount         int64  `json:"amount"`
	BalanceAfter   int64  `json:"balance_after"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedAt      int64  `json:"created_at"`
}

func (h *adminRoutes) ApproveRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run_id"})
		return
	}

	var req approveRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	result, err := h.rewards.ApproveAndReward(c.Request.Context(), runID, req.IdempotencyKey)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response := approveRunResponse{Run: newRunResponse(result.Run)}
	if result.Transaction != nil {
		response.Transaction = &txnResponse{
			TransactionID:  result.Transaction.ID.String(),
			Amount:         result.Transaction.Amount,
			BalanceAfter:   result.Transaction.BalanceAfter,
			IdempotencyKey: result.Transaction.IdempotencyKey,
			CreatedAt:      result.Transaction.CreatedAt.Unix(),
		}
	}

	c.JSON(http.StatusOK, response)
}

type issueQrResponse struct {
	Nonce     string          `json:"nonce"`
	ExpiresAt int64           `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
	ImagePNG  string          `json:"image_png"`
}

func (h *adminRoutes) IssueQr(c *gin.Context) {
	missionID, err := uuid.Parse(c.Param("mission_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mission_id"})
		return
	}

	issued, err := h.verifications.IssueQr(c.Request.Context(), missionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issueQrResponse{
		Nonce:     issued.Nonce.Nonce,
		ExpiresAt: issued.Nonce.ExpiresAt.Unix(),
		Payload:   issued.Payload,
		ImagePNG:  base64.StdEncoding.EncodeToString(issued.PNG),
	})
}
