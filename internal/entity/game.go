package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

type Game struct {
	ID                   string    `json:"id"`
	Code                 string    `json:"code"`
	HostName             string    `json:"host_name"`
	MaxPlayers           int       `json:"max_players"`
	Status               string    `json:"status"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	RevealedAnswer       string    `json:"revealed_answer,omitempty"`
	RoundStartedAt       time.Time `json:"round_started_at"`
	CreatedAt            time.Time `json:"created_at"`
}

func NewGame(id, code, hostName string, maxPlayers int, now time.Time) *Game {
	return &Game{
		ID:         id,
		Code:       code,
		HostName:   hostName,
		MaxPlayers: maxPlayers,
		Status:     StatusWaiting,
		CreatedAt:  now.UTC(),
	}
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

// IsRevealed reports whether the current round has already been settled.
func (that *Game) IsRevealed() bool {
	return that.RevealedAnswer != ""
}

func (that *Game) ConfirmPlayingState() error {
	switch that.Status {
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	case StatusPlaying:
		return nil
	default:
		return fmt.Errorf("unknown game status: %s", that.Status)
	}
}

// Start moves a waiting game to the first round. It returns false when the game
// was already started, so repeated starts change nothing.
func (that *Game) Start(now time.Time) bool {
	if !that.IsWaiting() {
		return false
	}

	that.Status = StatusPlaying
	that.CurrentQuestionIndex = 0
	that.RevealedAnswer = ""
	that.RoundStartedAt = now.UTC()

	return true
}

func (that *Game) Reveal(answer string) error {
	if err := that.ConfirmPlayingState(); err != nil {
		return err
	}

	if that.IsRevealed() {
		return apperror.ErrAlreadyRevealed
	}

	that.RevealedAnswer = answer

	return nil
}

// Advance moves to the next round or finishes the game after the last one.
// The index never reaches totalQuestions.
func (that *Game) Advance(totalQuestions int, now time.Time) (bool, error) {
	if err := that.ConfirmPlayingState(); err != nil {
		return false, err
	}

	if !that.IsRevealed() {
		return false, apperror.ErrNotRevealed
	}

	if that.CurrentQuestionIndex+1 >= totalQuestions {
		that.Status = StatusFinished
		return true, nil
	}

	that.RevealedAnswer = ""
	that.CurrentQuestionIndex++
	that.RoundStartedAt = now.UTC()

	return false, nil
}
