package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

var ErrGameNotFound = apperror.ErrRoomNotFound

type GameRepository interface {
	Create(ctx context.Context, game *entity.Game) error
	Update(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	GetByCode(ctx context.Context, code string) (*entity.Game, error)
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func gameKey(id string) string {
	return "game:" + id
}

func gameCodeKey(code string) string {
	return "game:code:" + code
}

// Create - stores a new game. The room code is claimed first, so a collision
// leaves nothing behind and returns ErrCodeTaken.
func (that *dbGame) Create(ctx context.Context, game *entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	claimed, err := that.client.SetNX(ctx, gameCodeKey(game.Code), game.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim room code: %w", err)
	}

	if !claimed {
		return apperror.ErrCodeTaken
	}

	if err = that.client.Set(ctx, gameKey(game.ID), gameJSON, 0).Err(); err != nil {
		that.client.Del(ctx, gameCodeKey(game.Code))
		return fmt.Errorf("failed to set game: %w", err)
	}

	return nil
}

func (that *dbGame) Update(ctx context.Context, game *entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	updated, err := that.client.SetXX(ctx, gameKey(game.ID), gameJSON, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	if !updated {
		return ErrGameNotFound
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	response, err := that.client.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	var existingGame entity.Game
	if err = json.Unmarshal([]byte(response), &existingGame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &existingGame, nil
}

func (that *dbGame) GetByCode(ctx context.Context, code string) (*entity.Game, error) {
	id, err := that.client.Get(ctx, gameCodeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by code: %w", err)
	}

	return that.GetByID(ctx, id)
}
