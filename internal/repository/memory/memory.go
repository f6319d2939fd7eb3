// Package memory is a process-local room store. It backs storage: memory and
// the state machine tests; every read returns a copy.
package memory

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

type GameRepository struct {
	mu     sync.RWMutex
	games  map[string]entity.Game
	byCode map[string]string
}

func NewGameRepository() *GameRepository {
	return &GameRepository{
		games:  make(map[string]entity.Game),
		byCode: make(map[string]string),
	}
}

func (that *GameRepository) Create(ctx context.Context, game *entity.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.byCode[game.Code]; ok {
		return apperror.ErrCodeTaken
	}

	that.byCode[game.Code] = game.ID
	that.games[game.ID] = *game

	return nil
}

func (that *GameRepository) Update(ctx context.Context, game *entity.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.games[game.ID]; !ok {
		return apperror.ErrRoomNotFound
	}

	that.games[game.ID] = *game

	return nil
}

func (that *GameRepository) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	game, ok := that.games[id]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return &game, nil
}

func (that *GameRepository) GetByCode(ctx context.Context, code string) (*entity.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	that.mu.RLock()
	id, ok := that.byCode[code]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return that.GetByID(ctx, id)
}

type PlayerRepository struct {
	mu      sync.RWMutex
	players map[string]entity.Player
	byGame  map[string][]string
}

func NewPlayerRepository() *PlayerRepository {
	return &PlayerRepository{
		players: make(map[string]entity.Player),
		byGame:  make(map[string][]string),
	}
}

func (that *PlayerRepository) Create(ctx context.Context, player *entity.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// join order keeps counting after removals so it stays unique
	order := 1
	for _, id := range that.byGame[player.GameID] {
		if existing := that.players[id]; existing.JoinOrder >= order {
			order = existing.JoinOrder + 1
		}
	}
	player.JoinOrder = order

	stored := *player
	stored.Bet = player.Bet.Clone()

	that.players[player.ID] = stored
	that.byGame[player.GameID] = append(that.byGame[player.GameID], player.ID)

	return nil
}

func (that *PlayerRepository) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	player, ok := that.players[id]
	if !ok {
		return nil, apperror.ErrPlayerNotFound
	}

	return clonePlayer(player), nil
}

func (that *PlayerRepository) ListByGame(ctx context.Context, gameID string) ([]*entity.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	ids := that.byGame[gameID]
	players := make([]*entity.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, clonePlayer(that.players[id]))
	}

	entity.SortByJoinOrder(players)

	return players, nil
}

func (that *PlayerRepository) Update(ctx context.Context, id string, update entity.PlayerUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.players[id]
	if !ok {
		return apperror.ErrPlayerNotFound
	}

	update.Apply(&player)
	that.players[id] = player

	return nil
}

func (that *PlayerRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	player, ok := that.players[id]
	if !ok {
		return apperror.ErrPlayerNotFound
	}

	delete(that.players, id)

	ids := that.byGame[player.GameID]
	for i, existing := range ids {
		if existing == id {
			that.byGame[player.GameID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	return nil
}

func clonePlayer(player entity.Player) *entity.Player {
	player.Bet = player.Bet.Clone()
	return &player
}
