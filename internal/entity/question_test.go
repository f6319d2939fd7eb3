package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
)

func testQuestion(maxOptions int) *Question {
	return &Question{
		Text: "q",
		Options: []Option{
			{ID: "A", Text: "a", IsCorrect: true},
			{ID: "B", Text: "b"},
			{ID: "C", Text: "c"},
			{ID: "D", Text: "d"},
		},
		MaxOptions: maxOptions,
	}
}

func TestQuestion_CorrectOption(t *testing.T) {
	assert.Equal(t, "A", testQuestion(3).CorrectOption())
	assert.True(t, testQuestion(3).HasOption("D"))
	assert.False(t, testQuestion(3).HasOption("E"))
}

func TestQuestion_ValidateBet(t *testing.T) {
	tests := []struct {
		name    string
		bet     Bet
		max     int
		wantErr bool
	}{
		{"valid full bet", Bet{"A": 500_000, "B": 500_000}, 3, false},
		{"partial bet is allowed while editing", Bet{"A": 25_000}, 3, false},
		{"unknown option", Bet{"E": 25_000}, 3, true},
		{"negative amount", Bet{"A": -25_000}, 3, true},
		{"not a multiple of the step", Bet{"A": 10_000}, 3, true},
		{"over bankroll", Bet{"A": 1_000_000, "B": 25_000}, 3, true},
		{"single amount over bankroll", Bet{"A": 1_025_000}, 3, true},
		{"amounts that overflow when summed", Bet{"A": 9_223_372_036_854_775_000, "B": 9_223_372_036_854_775_000}, 3, true},
		{"all four options used", Bet{"A": 250_000, "B": 250_000, "C": 250_000, "D": 250_000}, 3, true},
		{"zero entries do not count toward breadth", Bet{"A": 1_000_000, "B": 0, "C": 0, "D": 0}, 1, false},
		{"final round allows one option", Bet{"A": 500_000, "B": 500_000}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testQuestion(tt.max).ValidateBet(tt.bet, StartingMoney, 25_000)

			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrInvalidBet)
				return
			}
			assert.NoError(t, err)
		})
	}
}
