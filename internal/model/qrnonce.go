package model

import (
	"time"

	"github.com/google/uuid"
)

// QrNonce is a single-use capability token bound to a mission and place.
// It is created when a venue QR code is issued and consumed exactly once.
type QrNonce struct {
	Nonce     string
	MissionID uuid.UUID
	PlaceID   uuid.UUID
	UsedAt    *time.Time
	UsedBy    *int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// QrPayload is the structured record encoded into a venue QR code. It
// arrives as untrusted client input and is re-validated on every scan.
type QrPayload struct {
	MissionID string `json:"mission_id"`
	PlaceID   string `json:"place_id"`
	Nonce     string `json:"nonce"`
	IssuedAt  int64  `json:"issued_at"`
	Signature string `json:"signature"`
}
