package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
)

func TestGameStatusMethods(t *testing.T) {
	t.Run("IsWaiting returns true for a new game", func(t *testing.T) {
		// Given: a freshly created game
		game := NewGame("id", "ABC123", "Host", 4, time.Now())

		// Then: it should be waiting at round 0
		assert.True(t, game.IsWaiting())
		assert.False(t, game.IsPlaying())
		assert.Equal(t, 0, game.CurrentQuestionIndex)
	})

	t.Run("IsFinished returns true when game status is finished", func(t *testing.T) {
		game := &Game{Status: StatusFinished}

		assert.True(t, game.IsFinished())
	})
}

func TestGame_ConfirmPlayingState(t *testing.T) {
	t.Run("Returns nil when game is playing", func(t *testing.T) {
		game := &Game{Status: StatusPlaying}

		assert.NoError(t, game.ConfirmPlayingState())
	})

	t.Run("Returns ErrGameIsNotStarted when game is waiting", func(t *testing.T) {
		game := &Game{Status: StatusWaiting}

		assert.ErrorIs(t, game.ConfirmPlayingState(), apperror.ErrGameIsNotStarted)
	})

	t.Run("Returns ErrGameFinished when game is finished", func(t *testing.T) {
		game := &Game{Status: StatusFinished}

		assert.ErrorIs(t, game.ConfirmPlayingState(), apperror.ErrGameFinished)
	})

	t.Run("Returns error for unknown game status", func(t *testing.T) {
		game := &Game{Status: "unknown"}

		err := game.ConfirmPlayingState()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown game status")
	})
}

func TestGame_Start(t *testing.T) {
	t.Run("Starts a waiting game once", func(t *testing.T) {
		// Given: a waiting game
		game := NewGame("id", "ABC123", "Host", 4, time.Now())

		// When: starting it twice
		first := game.Start(time.Now())
		second := game.Start(time.Now())

		// Then: only the first call changes state
		assert.True(t, first)
		assert.False(t, second)
		assert.Equal(t, StatusPlaying, game.Status)
		assert.Equal(t, 0, game.CurrentQuestionIndex)
	})

	t.Run("Does not restart a finished game", func(t *testing.T) {
		game := &Game{Status: StatusFinished, CurrentQuestionIndex: 7}

		assert.False(t, game.Start(time.Now()))
		assert.Equal(t, StatusFinished, game.Status)
		assert.Equal(t, 7, game.CurrentQuestionIndex)
	})
}

func TestGame_RevealAndAdvance(t *testing.T) {
	t.Run("Second reveal in the same round is rejected", func(t *testing.T) {
		// Given: a playing game with a revealed round
		game := &Game{Status: StatusPlaying}
		require.NoError(t, game.Reveal("A"))

		// When: revealing again
		err := game.Reveal("A")

		// Then: ErrAlreadyRevealed should be returned
		assert.ErrorIs(t, err, apperror.ErrAlreadyRevealed)
	})

	t.Run("Advance requires a revealed round", func(t *testing.T) {
		game := &Game{Status: StatusPlaying}

		_, err := game.Advance(8, time.Now())

		assert.ErrorIs(t, err, apperror.ErrNotRevealed)
	})

	t.Run("Advance increments the index and clears the reveal", func(t *testing.T) {
		// Given: a revealed round 0 of 3
		game := &Game{Status: StatusPlaying, RevealedAnswer: "B"}

		// When: advancing
		finished, err := game.Advance(3, time.Now())

		// Then: round 1 starts with no revealed answer
		require.NoError(t, err)
		assert.False(t, finished)
		assert.Equal(t, 1, game.CurrentQuestionIndex)
		assert.Empty(t, game.RevealedAnswer)
	})

	t.Run("Advance past the last round finishes the game", func(t *testing.T) {
		// Given: the last round revealed
		game := &Game{Status: StatusPlaying, CurrentQuestionIndex: 2, RevealedAnswer: "A"}

		// When: advancing
		finished, err := game.Advance(3, time.Now())

		// Then: the game is finished and the index stays within bounds
		require.NoError(t, err)
		assert.True(t, finished)
		assert.Equal(t, StatusFinished, game.Status)
		assert.Equal(t, 2, game.CurrentQuestionIndex)

		_, err = game.Advance(3, time.Now())
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		require.ErrorIs(t, game.Reveal("A"), apperror.ErrGameFinished)
	})
}
