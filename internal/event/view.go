package event

import (
	"time"

	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// IsCorrect stays unset until the round is revealed.
	IsCorrect *bool `json:"isCorrect,omitempty"`
}

type QuestionView struct {
	Order      int          `json:"order"`
	Type       string       `json:"type"`
	Text       string       `json:"text"`
	Options    []OptionView `json:"options"`
	MaxOptions int          `json:"maxOptions"`
}

// PlayerView never carries bet amounts; other players only see the confirmed flag.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Money     int64  `json:"money"`
	Status    string `json:"status"`
	Confirmed bool   `json:"confirmed"`
	Connected bool   `json:"connected"`
	JoinOrder int    `json:"joinOrder"`
}

type RoomView struct {
	RoomCode             string        `json:"roomCode"`
	HostName             string        `json:"hostName"`
	MaxPlayers           int           `json:"maxPlayers"`
	Status               string        `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	TotalQuestions       int           `json:"totalQuestions"`
	RevealedAnswer       string        `json:"revealedAnswer,omitempty"`
	RoundDeadline        *time.Time    `json:"roundDeadline,omitempty"`
	Question             *QuestionView `json:"question,omitempty"`
	Players              []PlayerView  `json:"players"`
}

type questionSource interface {
	Len() int
	Question(i int) (entity.Question, bool)
}

type liveness interface {
	IsLive(connID, playerID string) bool
}

// Projector turns stored state into the views sent to clients.
type Projector struct {
	questions     questionSource
	sessions      liveness
	roundDuration time.Duration
}

func NewProjector(questions questionSource, sessions liveness, roundDuration time.Duration) *Projector {
	return &Projector{
		questions:     questions,
		sessions:      sessions,
		roundDuration: roundDuration,
	}
}

func (that *Projector) Player(player *entity.Player) PlayerView {
	return PlayerView{
		ID:        player.ID,
		Name:      player.Name,
		Money:     player.Money,
		Status:    player.Status,
		Confirmed: player.Confirmed,
		Connected: that.sessions.IsLive(player.ConnectionID, player.ID),
		JoinOrder: player.JoinOrder,
	}
}

// Question - returns the current round, or nil while the game is waiting.
func (that *Projector) Question(game *entity.Game) *QuestionView {
	if game.IsWaiting() {
		return nil
	}

	question, ok := that.questions.Question(game.CurrentQuestionIndex)
	if !ok {
		return nil
	}

	revealed := game.IsRevealed()

	options := make([]OptionView, 0, len(question.Options))
	for _, option := range question.Options {
		view := OptionView{ID: option.ID, Text: option.Text}
		if revealed {
			view.IsCorrect = entity.Ptr(option.IsCorrect)
		}
		options = append(options, view)
	}

	return &QuestionView{
		Order:      question.Order,
		Type:       question.Type,
		Text:       question.Text,
		Options:    options,
		MaxOptions: question.MaxOptions,
	}
}

// Room - builds the full room view. Once the game is finished the players come
// back as the leaderboard.
func (that *Projector) Room(game *entity.Game, players []*entity.Player) RoomView {
	ordered := make([]*entity.Player, len(players))
	copy(ordered, players)

	if game.IsFinished() {
		entity.SortLeaderboard(ordered)
	} else {
		entity.SortByJoinOrder(ordered)
	}

	views := make([]PlayerView, 0, len(ordered))
	for _, player := range ordered {
		views = append(views, that.Player(player))
	}

	view := RoomView{
		RoomCode:             game.Code,
		HostName:             game.HostName,
		MaxPlayers:           game.MaxPlayers,
		Status:               game.Status,
		CurrentQuestionIndex: game.CurrentQuestionIndex,
		TotalQuestions:       that.questions.Len(),
		RevealedAnswer:       game.RevealedAnswer,
		Question:             that.Question(game),
		Players:              views,
	}

	if game.IsPlaying() && !game.IsRevealed() && that.roundDuration > 0 {
		deadline := game.RoundStartedAt.Add(that.roundDuration)
		view.RoundDeadline = &deadline
	}

	return view
}
