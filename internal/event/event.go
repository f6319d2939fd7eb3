// Package event defines the closed set of messages exchanged with clients and
// the views the server projects its state into.
package event

import (
	"fmt"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

type Kind string

// client -> server
const (
	CreateRoom   Kind = "CREATE_ROOM"
	JoinRoom     Kind = "JOIN_ROOM"
	StartGame    Kind = "START_GAME"
	UpdateBet    Kind = "UPDATE_BET"
	ConfirmBet   Kind = "CONFIRM_BET"
	RevealResult Kind = "REVEAL_RESULT"
	NextQuestion Kind = "NEXT_QUESTION"
	KickPlayer   Kind = "KICK_PLAYER"
	WatchRoom    Kind = "WATCH_ROOM"
)

// server -> client
const (
	RoomCreated   Kind = "ROOM_CREATED"
	StateUpdate   Kind = "STATE_UPDATE"
	PlayerJoined  Kind = "PLAYER_JOINED"
	GameStarted   Kind = "GAME_STARTED"
	GameJoined    Kind = "GAME_JOINED"
	BetUpdated    Kind = "BET_UPDATED"
	PlayerRemoved Kind = "PLAYER_REMOVED"
	Error         Kind = "ERROR"
)

var commands = map[Kind]struct{}{
	CreateRoom:   {},
	JoinRoom:     {},
	StartGame:    {},
	UpdateBet:    {},
	ConfirmBet:   {},
	RevealResult: {},
	NextQuestion: {},
	KickPlayer:   {},
	WatchRoom:    {},
}

func (that Kind) IsCommand() bool {
	_, ok := commands[that]
	return ok
}

// ParseCommand - accepts only the known client commands.
func ParseCommand(action string) (Kind, error) {
	kind := Kind(action)
	if !kind.IsCommand() {
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownCommand, action)
	}

	return kind, nil
}

// Envelope is the outbound frame: {"action": KIND, "payload": {...}}.
type Envelope struct {
	Action  Kind `json:"action"`
	Payload any  `json:"payload"`
}

func New(kind Kind, payload any) Envelope {
	return Envelope{Action: kind, Payload: payload}
}

type RoomPayload struct {
	Room RoomView `json:"room"`
}

type PlayerJoinedPayload struct {
	Player      PlayerView `json:"player"`
	PlayerCount int        `json:"playerCount"`
}

type GameStartedPayload struct {
	Room     RoomView      `json:"room"`
	Question *QuestionView `json:"question"`
}

// GameJoinedPayload is the private join acknowledgment. Bet is the joiner's own
// distribution so a reconnecting client can restore it.
type GameJoinedPayload struct {
	Room        RoomView   `json:"room"`
	Player      PlayerView `json:"player"`
	Bet         entity.Bet `json:"bet"`
	Reconnected bool       `json:"reconnected"`
}

type BetUpdatedPayload struct {
	Bet       entity.Bet `json:"bet"`
	Total     int64      `json:"total"`
	Remaining int64      `json:"remaining"`
	Confirmed bool       `json:"confirmed"`
}

type PlayerRemovedPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type ErrorPayload struct {
	Message string        `json:"message"`
	Kind    apperror.Kind `json:"kind"`
	Command Kind          `json:"command,omitempty"`
}

const internalErrorMessage = "internal server error"

// NewError - builds the ERROR frame for a rejected command. Internal errors are
// reduced to a generic message.
func NewError(command Kind, err error) Envelope {
	message := internalErrorMessage
	if apperror.IsClientVisible(err) {
		message = err.Error()
	}

	return New(Error, ErrorPayload{
		Message: message,
		Kind:    apperror.KindOf(err),
		Command: command,
	})
}

func NewBetUpdated(player *entity.Player) Envelope {
	bet := player.Bet.Clone()
	total := bet.Total()

	return New(BetUpdated, BetUpdatedPayload{
		Bet:       bet,
		Total:     total,
		Remaining: player.Money - total,
		Confirmed: player.Confirmed,
	})
}
