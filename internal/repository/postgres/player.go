package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

type PlayerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *PlayerRepository {
	return &PlayerRepository{
		db: db,
	}
}

// Create - inserts the player with the next join order of its game.
func (that *PlayerRepository) Create(ctx context.Context, player *entity.Player) error {
	return that.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialises concurrent joins of the same game
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&gameModel{}).
			Select("id").
			Where("id = ?", player.GameID).
			Take(&gameModel{}).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lock game: %w", err)
		}

		var last int
		if err := tx.Model(&playerModel{}).
			Where("game_id = ?", player.GameID).
			Select("COALESCE(MAX(join_order), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to read join order: %w", err)
		}

		player.JoinOrder = last + 1

		model, err := playerToModel(player)
		if err != nil {
			return err
		}

		if err = tx.Create(&model).Error; err != nil {
			return fmt.Errorf("failed to create player: %w", err)
		}

		return nil
	})
}

func (that *PlayerRepository) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	var model playerModel

	err := that.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return model.toEntity()
}

func (that *PlayerRepository) ListByGame(ctx context.Context, gameID string) ([]*entity.Player, error) {
	var models []playerModel

	if err := that.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("join_order ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	players := make([]*entity.Player, 0, len(models))
	for _, model := range models {
		player, err := model.toEntity()
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}

	return players, nil
}

func (that *PlayerRepository) Update(ctx context.Context, id string, update entity.PlayerUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	columns := make(map[string]any, 5)
	if update.ConnectionID != nil {
		columns["connection_id"] = *update.ConnectionID
	}
	if update.Money != nil {
		columns["money"] = *update.Money
	}
	if update.Status != nil {
		columns["status"] = *update.Status
	}
	if update.Bet != nil {
		bet, err := betToJSON(*update.Bet)
		if err != nil {
			return err
		}
		columns["bet"] = bet
	}
	if update.Confirmed != nil {
		columns["confirmed"] = *update.Confirmed
	}

	result := that.db.WithContext(ctx).Model(&playerModel{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("failed to update player: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.ErrPlayerNotFound
	}

	return nil
}

func (that *PlayerRepository) Delete(ctx context.Context, id string) error {
	result := that.db.WithContext(ctx).Where("id = ?", id).Delete(&playerModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete player: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.ErrPlayerNotFound
	}

	return nil
}
