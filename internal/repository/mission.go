package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zzik-backend/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type dbMission struct {
	ID             uuid.UUID  `db:"id"`
	PlaceID        uuid.UUID  `db:"place_id"`
	Title          string     `db:"title"`
	RewardAmount   int64      `db:"reward_amount"`
	RequireGps     bool       `db:"require_gps"`
	RequireQr      bool       `db:"require_qr"`
	RequireReels   bool       `db:"require_reels"`
	MaxRunsPerUser *int       `db:"max_runs_per_user"`
	Status         string     `db:"status"`
	StartAt        *time.Time `db:"start_at"`
	EndAt          *time.Time `db:"end_at"`
	CreatedAt      time.Time  `db:"created_at"`
}

type dbPlace struct {
	ID        uuid.UUID `db:"id"`
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
	Category  string    `db:"category"`
}

func (m *dbMission) toModel() *model.Mission {
	return &model.Mission{
		ID:           m.ID,
		PlaceID:      m.PlaceID,
		Title:        m.Title,
		RewardAmount: m.RewardAmount,
		Spec: model.VerificationSpec{
			GPS:   m.RequireGps,
			QR:    m.RequireQr,
			Reels: m.RequireReels,
		},
		MaxRunsPerUser: m.MaxRunsPerUser,
		Status:         model.MissionStatus(m.Status),
		StartAt:        m.StartAt,
		EndAt:          m.EndAt,
		CreatedAt:      m.CreatedAt,
	}
}

func (r *Repository) GetMissionByID(ctx context.Context, missionID uuid.UUID) (*model.Mission, error) {
	query, args, err := squirrel.
		Select(
			"id", "place_id", "title", "reward_amount",
			"require_gps", "require_qr", "require_reels",
			"max_runs_per_user", "status", "start_at", "end_at", "created_at",
		).
		From("missions").
		Where(squirrel.Eq{"id": missionID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build mission query: %w", err)
	}

	var mission dbMission
	err = r.db.GetContext(ctx, &mission, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	return mission.toModel(), nil
}

func (r *Repository) GetPlaceByID(ctx context.Context, placeID uuid.UUID) (*model.Place, error) {
	query, args, err := squirrel.
		Select("id", "latitude", "longitude", "category").
		From("places").
		Where(squirrel.Eq{"id": placeID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build place query: %w", err)
	}

	var place dbPlace
	err = r.db.GetContext(ctx, &place, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	return &model.Place{
		ID:        place.ID,
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		Category:  place.Category,
	}, nil
}
