package apperror

import (
	"context"
	"errors"
)

// Kind classifies an error for the client; every rejected command carries one.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindState      Kind = "state"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrInvalidHostName   = errors.New("host name is required")
	ErrInvalidPlayerName = errors.New("player name is required")
	ErrInvalidCapacity   = errors.New("invalid room capacity")
	ErrInvalidBet        = errors.New("invalid bet")

	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")

	ErrNameTaken          = errors.New("name is already taken")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomAlreadyStarted = errors.New("game has already started")
	ErrAlreadyRevealed    = errors.New("answer already revealed")
	ErrBetLocked          = errors.New("bet is already confirmed")
	ErrCodeTaken          = errors.New("room code already in use")
	ErrAlreadyInRoom      = errors.New("connection already plays in this room")

	ErrNotInGame        = errors.New("connection is not in a game")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameFinished     = errors.New("game is already finished")
	ErrPlayerNotActive  = errors.New("player is not active")
	ErrNotRevealed      = errors.New("answer is not revealed yet")
	ErrNoPlayers        = errors.New("room has no players")

	ErrStoreTimeout  = errors.New("store timeout")
	ErrRateLimited   = errors.New("too many requests, slow down")
	ErrCodeExhausted = errors.New("could not allocate a room code")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidPayload, KindValidation},
	{ErrUnknownCommand, KindValidation},
	{ErrInvalidHostName, KindValidation},
	{ErrInvalidPlayerName, KindValidation},
	{ErrInvalidCapacity, KindValidation},
	{ErrInvalidBet, KindValidation},

	{ErrRoomNotFound, KindNotFound},
	{ErrPlayerNotFound, KindNotFound},

	{ErrNameTaken, KindConflict},
	{ErrRoomFull, KindConflict},
	{ErrRoomAlreadyStarted, KindConflict},
	{ErrAlreadyRevealed, KindConflict},
	{ErrBetLocked, KindConflict},
	{ErrCodeTaken, KindConflict},
	{ErrAlreadyInRoom, KindConflict},

	{ErrNotInGame, KindState},
	{ErrGameIsNotStarted, KindState},
	{ErrGameFinished, KindState},
	{ErrPlayerNotActive, KindState},
	{ErrNotRevealed, KindState},
	{ErrNoPlayers, KindState},

	{ErrStoreTimeout, KindTransient},
	{ErrRateLimited, KindTransient},
	{ErrCodeExhausted, KindTransient},
	{context.DeadlineExceeded, KindTransient},
}

// KindOf - returns the kind of the first known error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return KindInternal
}

// IsClientVisible reports whether the error message may be shown to the client as is.
func IsClientVisible(err error) bool {
	return KindOf(err) != KindInternal
}
