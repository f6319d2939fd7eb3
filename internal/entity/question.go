package entity

import (
	"fmt"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
)

const (
	QuestionNormal  = "normal"
	QuestionReduced = "reduced"
	QuestionFinal   = "final"
)

type Option struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"is_correct" yaml:"correct"`
}

type Question struct {
	Order      int      `json:"order" yaml:"order"`
	Type       string   `json:"type" yaml:"type"`
	Text       string   `json:"text" yaml:"text"`
	Options    []Option `json:"options" yaml:"options"`
	MaxOptions int      `json:"max_options" yaml:"max_options"`
}

func (that *Question) CorrectOption() string {
	for _, option := range that.Options {
		if option.IsCorrect {
			return option.ID
		}
	}
	return ""
}

func (that *Question) HasOption(id string) bool {
	for _, option := range that.Options {
		if option.ID == id {
			return true
		}
	}
	return false
}

// ValidateBet checks a distribution against this round. Amounts must be multiples
// of step when step is positive.
func (that *Question) ValidateBet(bet Bet, money, step int64) error {
	var total int64
	for option, amount := range bet {
		if !that.HasOption(option) {
			return fmt.Errorf("%w: unknown option %q", apperror.ErrInvalidBet, option)
		}

		if amount < 0 {
			return fmt.Errorf("%w: negative amount on %s", apperror.ErrInvalidBet, option)
		}

		if step > 0 && amount%step != 0 {
			return fmt.Errorf("%w: amount on %s must be a multiple of %d", apperror.ErrInvalidBet, option, step)
		}

		// total never exceeds money here, so the subtraction cannot wrap
		if amount > money-total {
			return fmt.Errorf("%w: bet exceeds bankroll %d", apperror.ErrInvalidBet, money)
		}
		total += amount
	}

	if used := bet.OptionsUsed(); used > that.MaxOptions {
		return fmt.Errorf("%w: money on %d options, at most %d allowed", apperror.ErrInvalidBet, used, that.MaxOptions)
	}

	return nil
}
