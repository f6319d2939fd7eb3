// Package postgres is the relational room store, selected with storage: postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{
		db: db,
	}
}

func (that *GameRepository) Create(ctx context.Context, game *entity.Game) error {
	model := gameToModel(game)

	err := that.db.WithContext(ctx).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.ErrCodeTaken
	}

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return nil
}

func (that *GameRepository) Update(ctx context.Context, game *entity.Game) error {
	model := gameToModel(game)

	result := that.db.WithContext(ctx).
		Model(&gameModel{}).
		Where("id = ?", game.ID).
		Updates(map[string]any{
			"host_name":              model.HostName,
			"max_players":            model.MaxPlayers,
			"status":                 model.Status,
			"current_question_index": model.CurrentQuestionIndex,
			"revealed_answer":        model.RevealedAnswer,
			"round_started_at":       model.RoundStartedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update game: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.ErrRoomNotFound
	}

	return nil
}

func (that *GameRepository) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	return that.first(ctx, "id = ?", id)
}

func (that *GameRepository) GetByCode(ctx context.Context, code string) (*entity.Game, error) {
	return that.first(ctx, "code = ?", code)
}

func (that *GameRepository) first(ctx context.Context, query string, arg string) (*entity.Game, error) {
	var model gameModel

	err := that.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return model.toEntity(), nil
}
