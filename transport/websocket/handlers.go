package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type createRoomPayload struct {
	HostName   string `json:"hostName" validate:"required,max=64"`
	MaxPlayers int    `json:"maxPlayers" validate:"required,min=1"`
}

type joinRoomPayload struct {
	RoomCode   string `json:"roomCode" validate:"required,max=16"`
	PlayerName string `json:"playerName" validate:"required,max=64"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode" validate:"required,max=16"`
}

type updateBetPayload struct {
	RoomCode     string           `json:"roomCode" validate:"required,max=16"`
	Distribution map[string]int64 `json:"distribution" validate:"required,max=8,dive,keys,required,max=4,endkeys,min=0"`
}

type kickPlayerPayload struct {
	RoomCode string `json:"roomCode" validate:"required,max=16"`
	PlayerID string `json:"playerId" validate:"required,max=64"`
}

// decode - unmarshals and validates a command payload.
func (that *Server) decode(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", apperror.ErrInvalidPayload)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	if err := that.validate.Struct(target); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			return fmt.Errorf("%w: %s", apperror.ErrInvalidPayload, describe(fieldErrors))
		}
		return fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	return nil
}

func describe(fieldErrors validator.ValidationErrors) string {
	parts := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		parts = append(parts, fmt.Sprintf("%s failed %s", fieldError.Namespace(), fieldError.Tag()))
	}
	return strings.Join(parts, ", ")
}

func (that *Server) handleCreateRoom(ctx context.Context, c *client, raw json.RawMessage) error {
	var payload createRoomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	_, err := that.manager.CreateRoom(ctx, c.id, payload.HostName, payload.MaxPlayers)
	return err
}

func (that *Server) handleJoinRoom(ctx context.Context, c *client, raw json.RawMessage) error {
	var payload joinRoomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	_, err := that.manager.JoinRoom(ctx, c.id, payload.RoomCode, payload.PlayerName)
	return err
}

func (that *Server) handleStartGame(ctx context.Context, _ *client, raw json.RawMessage) error {
	var payload roomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.StartGame(ctx, payload.RoomCode)
}

func (that *Server) handleUpdateBet(ctx context.Context, c *client, raw json.RawMessage) error {
	if !c.limiter.Allow() {
		return apperror.ErrRateLimited
	}

	var payload updateBetPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.UpdateBet(ctx, c.id, payload.RoomCode, entity.Bet(payload.Distribution))
}

func (that *Server) handleConfirmBet(ctx context.Context, c *client, raw json.RawMessage) error {
	var payload roomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.ConfirmBet(ctx, c.id, payload.RoomCode)
}

func (that *Server) handleRevealResult(ctx context.Context, _ *client, raw json.RawMessage) error {
	var payload roomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.RevealResult(ctx, payload.RoomCode)
}

func (that *Server) handleNextQuestion(ctx context.Context, _ *client, raw json.RawMessage) error {
	var payload roomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.NextQuestion(ctx, payload.RoomCode)
}

func (that *Server) handleKickPlayer(ctx context.Context, _ *client, raw json.RawMessage) error {
	var payload kickPlayerPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.KickPlayer(ctx, payload.RoomCode, payload.PlayerID)
}

func (that *Server) handleWatchRoom(ctx context.Context, c *client, raw json.RawMessage) error {
	var payload roomPayload
	if err := that.decode(raw, &payload); err != nil {
		return err
	}

	return that.manager.WatchRoom(ctx, c.id, payload.RoomCode)
}
