package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/internal/repository/model"
	"gorm.io/gorm"
)

type PostgresMatchRepository struct {
	db *gorm.DB
}

func NewPostgresMatchRepository(db *gorm.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

func (r *PostgresMatchRepository) Create(ctx context.Context, match *domain.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if match == nil {
		return errors.New("match is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelMatch(match)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrMatchExists
		}
		return err
	}
	return nil
}

func (r *PostgresMatchRepository) End(ctx context.Context, id uuid.UUID, reason domain.EndReason, endedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]any{
			"ended_at":   endedAt.UTC(),
			"end_reason": string(reason),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Match{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrMatchNotFound
		}
	}
	return nil
}

func (r *PostgresMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var match model.Match
	err := r.db.WithContext(ctx).First(&match, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	return toDomainMatch(&match), nil
}

func (r *PostgresMatchRepository) ListByClient(ctx context.Context, clientID domain.ClientID, limit int) ([]*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Where("client_a = ? OR client_b = ?", clientID.String(), clientID.String()).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var matches []model.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Match, 0, len(matches))
	for i := range matches {
		result = append(result, toDomainMatch(&matches[i]))
	}
	return result, nil
}

func (r *PostgresMatchRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Match{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func toModelMatch(match *domain.Match) *model.Match {
	var endedAt *time.Time
	if !match.EndedAt.IsZero() {
		t := match.EndedAt.UTC()
		endedAt = &t
	}
	return &model.Match{
		ID:        match.ID,
		ClientA:   match.ClientA.String(),
		ClientB:   match.ClientB.String(),
		StartedAt: match.StartedAt.UTC(),
		EndedAt:   endedAt,
		EndReason: string(match.EndReason),
	}
}

func toDomainMatch(match *model.Match) *domain.Match {
	var endedAt time.Time
	if match.EndedAt != nil {
		endedAt = match.EndedAt.UTC()
	}
	return &domain.Match{
		ID:        match.ID,
		ClientA:   domain.ClientID(match.ClientA),
		ClientB:   domain.ClientID(match.ClientB),
		StartedAt: match.StartedAt.UTC(),
		EndedAt:   endedAt,
		EndReason: domain.EndReason(match.EndReason),
	}
}
