package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
	"github.com/rocketscienceinc/atrapa-milio/internal/event"
	"github.com/rocketscienceinc/atrapa-milio/internal/repository/memory"
	"github.com/rocketscienceinc/atrapa-milio/internal/session"
)

var errRedisDown = errors.New("redis down")

type mockPlayerRepo struct {
	mock.Mock
}

func (that *mockPlayerRepo) Create(ctx context.Context, player *entity.Player) error {
	args := that.Called(ctx, player)
	return args.Error(0)
}

func (that *mockPlayerRepo) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	args := that.Called(ctx, id)
	return args.Get(0).(*entity.Player), args.Error(1)
}

func (that *mockPlayerRepo) ListByGame(ctx context.Context, gameID string) ([]*entity.Player, error) {
	args := that.Called(ctx, gameID)
	return args.Get(0).([]*entity.Player), args.Error(1)
}

func (that *mockPlayerRepo) Update(ctx context.Context, id string, update entity.PlayerUpdate) error {
	args := that.Called(ctx, id, update)
	return args.Error(0)
}

func (that *mockPlayerRepo) Delete(ctx context.Context, id string) error {
	args := that.Called(ctx, id)
	return args.Error(0)
}

func TestRoomManager_RevealResult_PartialFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	// Given: a running game with two players, the store failing for the first one
	games := memory.NewGameRepository()
	game := entity.NewGame("game-1", "ABC123", "Host", 4, now)
	require.True(t, game.Start(now))
	require.NoError(t, games.Create(ctx, game))

	ana := entity.NewPlayer("p-ana", game.ID, "conn-ana", "Ana", 1_000_000, now)
	ana.JoinOrder = 1
	ana.Bet = entity.Bet{"A": 1_000_000}
	biel := entity.NewPlayer("p-biel", game.ID, "conn-biel", "Biel", 1_000_000, now)
	biel.JoinOrder = 2
	biel.Bet = entity.Bet{"B": 1_000_000}

	players := &mockPlayerRepo{}
	players.On("ListByGame", mock.Anything, game.ID).
		Return([]*entity.Player{ana, biel}, nil).
		Once()
	players.On("Update", mock.Anything, "p-ana", mock.AnythingOfType("entity.PlayerUpdate")).
		Return(errRedisDown).
		Once()
	players.On("Update", mock.Anything, "p-biel", mock.MatchedBy(func(update entity.PlayerUpdate) bool {
		return update.Money != nil && *update.Money == 0 &&
			update.Status != nil && *update.Status == entity.PlayerEliminated
	})).
		Return(nil).
		Once()

	hub := newRecordingHub()
	manager := NewRoomManager(discardLogger(), games, players, session.NewMemoryRegistry(), hub, testQuestions(t), testSettings())

	// When: the round is revealed
	err := manager.RevealResult(ctx, game.Code)

	// Then: the failure is skipped, the other player is still eliminated
	require.NoError(t, err)
	players.AssertExpectations(t)

	// And: the round is marked revealed so it cannot be settled again
	stored, err := games.GetByCode(ctx, game.Code)
	require.NoError(t, err)
	assert.Equal(t, "A", stored.RevealedAnswer)

	room := hub.LastRoom(t, event.StateUpdate)
	require.Len(t, room.Players, 2)
	assert.Equal(t, entity.PlayerActive, room.Players[0].Status)
	assert.Equal(t, entity.PlayerEliminated, room.Players[1].Status)
}

func TestRoomManager_RevealResult_GameUpdateFails(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	// Given: a store that loses the game write
	games := &failingGameRepo{GameRepository: memory.NewGameRepository()}
	game := entity.NewGame("game-1", "ABC123", "Host", 4, now)
	require.True(t, game.Start(now))
	require.NoError(t, games.Create(ctx, game))

	players := &mockPlayerRepo{}
	players.On("ListByGame", mock.Anything, game.ID).
		Return([]*entity.Player{entity.NewPlayer("p-ana", game.ID, "c", "Ana", 1_000_000, now)}, nil).
		Once()

	hub := newRecordingHub()
	manager := NewRoomManager(discardLogger(), games, players, session.NewMemoryRegistry(), hub, testQuestions(t), testSettings())

	// When: the round is revealed
	err := manager.RevealResult(ctx, game.Code)

	// Then: no player is settled and nothing is broadcast
	require.ErrorIs(t, err, errRedisDown)
	players.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, hub.All())
}

type failingGameRepo struct {
	*memory.GameRepository
}

func (that *failingGameRepo) Update(context.Context, *entity.Game) error {
	return errRedisDown
}
