package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
	"github.com/rocketscienceinc/atrapa-milio/testing/suite"
)

var now = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func TestGameRepository(t *testing.T) {
	ctx, st := suite.NewPostgres(t)
	require.NoError(t, Migrate(st.DB))

	gameRepo := NewGameRepository(st.DB)

	t.Run("Create_And_GetByCode", func(t *testing.T) {
		// Given: a new waiting game
		game := entity.NewGame("game-1", "ABC123", "Marta", 5, now)

		// When: it is created and fetched by code
		require.NoError(t, gameRepo.Create(ctx, game))
		stored, err := gameRepo.GetByCode(ctx, "ABC123")

		// Then: the stored copy matches
		require.NoError(t, err)
		assert.Equal(t, "game-1", stored.ID)
		assert.Equal(t, "Marta", stored.HostName)
		assert.Equal(t, entity.StatusWaiting, stored.Status)
	})

	t.Run("Create_CodeTaken", func(t *testing.T) {
		// When: a second game reuses the code
		err := gameRepo.Create(ctx, entity.NewGame("game-2", "ABC123", "Pau", 5, now))

		// Then: the unique index is reported as a taken code
		require.ErrorIs(t, err, apperror.ErrCodeTaken)
	})

	t.Run("Update", func(t *testing.T) {
		// Given: the stored game, started and revealed
		game, err := gameRepo.GetByID(ctx, "game-1")
		require.NoError(t, err)
		require.True(t, game.Start(now))
		require.NoError(t, game.Reveal("A"))

		// When: it is updated
		require.NoError(t, gameRepo.Update(ctx, game))

		// Then: status and reveal are persisted
		stored, err := gameRepo.GetByID(ctx, "game-1")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPlaying, stored.Status)
		assert.Equal(t, "A", stored.RevealedAnswer)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := gameRepo.GetByCode(ctx, "NOPE00")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		err = gameRepo.Update(ctx, entity.NewGame("missing", "XXX000", "Nobody", 1, now))
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestPlayerRepository(t *testing.T) {
	ctx, st := suite.NewPostgres(t)
	require.NoError(t, Migrate(st.DB))

	gameRepo := NewGameRepository(st.DB)
	playerRepo := NewPlayerRepository(st.DB)

	require.NoError(t, gameRepo.Create(ctx, entity.NewGame("game-1", "ABC123", "Marta", 5, now)))

	t.Run("Create_AssignsJoinOrder", func(t *testing.T) {
		// Given: two players joining
		anna := entity.NewPlayer("p-1", "game-1", "c1", "Anna", entity.StartingMoney, now)
		biel := entity.NewPlayer("p-2", "game-1", "c2", "Biel", entity.StartingMoney, now)

		// When: they are created one after the other
		require.NoError(t, playerRepo.Create(ctx, anna))
		require.NoError(t, playerRepo.Create(ctx, biel))

		// Then: join order is 1-based and stable
		assert.Equal(t, 1, anna.JoinOrder)
		assert.Equal(t, 2, biel.JoinOrder)

		players, err := playerRepo.ListByGame(ctx, "game-1")
		require.NoError(t, err)
		require.Len(t, players, 2)
		assert.Equal(t, "Anna", players[0].Name)
		assert.Equal(t, "Biel", players[1].Name)
	})

	t.Run("Update_Partial", func(t *testing.T) {
		// When: the bet and then the confirmation are written separately
		bet := entity.Bet{"A": 1_000_000}
		require.NoError(t, playerRepo.Update(ctx, "p-1", entity.PlayerUpdate{Bet: &bet}))
		require.NoError(t, playerRepo.Update(ctx, "p-1", entity.PlayerUpdate{Confirmed: entity.Ptr(true)}))

		// Then: both fields are kept
		stored, err := playerRepo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, bet, stored.Bet)
		assert.True(t, stored.Confirmed)
		assert.Equal(t, entity.StartingMoney, stored.Money)
	})

	t.Run("Update_ZeroMoney", func(t *testing.T) {
		// When: the player is eliminated
		require.NoError(t, playerRepo.Update(ctx, "p-2", entity.PlayerUpdate{
			Money:  entity.Ptr[int64](0),
			Status: entity.Ptr(entity.PlayerEliminated),
		}))

		// Then: zero values are written too
		stored, err := playerRepo.GetByID(ctx, "p-2")
		require.NoError(t, err)
		assert.Zero(t, stored.Money)
		assert.Equal(t, entity.PlayerEliminated, stored.Status)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, playerRepo.Delete(ctx, "p-2"))

		_, err := playerRepo.GetByID(ctx, "p-2")
		require.ErrorIs(t, err, apperror.ErrPlayerNotFound)
		require.ErrorIs(t, playerRepo.Delete(ctx, "p-2"), apperror.ErrPlayerNotFound)
	})
}
