package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

var ErrPlayerNotFound = apperror.ErrPlayerNotFound

type PlayerRepository interface {
	Create(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	ListByGame(ctx context.Context, gameID string) ([]*entity.Player, error)
	Update(ctx context.Context, id string, update entity.PlayerUpdate) error
	Delete(ctx context.Context, id string) error
}

// Players are kept as hashes so that a partial update touches only its own
// fields; the room keeps their ids in a list in join order.
type dbPlayer struct {
	client *redis.Client
}

func NewPlayerRepository(client *redis.Client) PlayerRepository {
	return &dbPlayer{
		client: client,
	}
}

const (
	fieldID           = "id"
	fieldGameID       = "game_id"
	fieldConnectionID = "connection_id"
	fieldName         = "name"
	fieldMoney        = "money"
	fieldStatus       = "status"
	fieldBet          = "bet"
	fieldConfirmed    = "confirmed"
	fieldJoinOrder    = "join_order"
	fieldJoinedAt     = "joined_at"
)

func playerKey(id string) string {
	return "player:" + id
}

func gamePlayersKey(gameID string) string {
	return "game:" + gameID + ":players"
}

func gameJoinSeqKey(gameID string) string {
	return "game:" + gameID + ":join_seq"
}

// Create - appends the player to its room. The join order comes from a per-room
// counter, so it stays unique after players are removed.
func (that *dbPlayer) Create(ctx context.Context, player *entity.Player) error {
	var order *redis.IntCmd
	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		order = pipe.Incr(ctx, gameJoinSeqKey(player.GameID))
		pipe.RPush(ctx, gamePlayersKey(player.GameID), player.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add player to game: %w", err)
	}

	player.JoinOrder = int(order.Val())

	fields, err := playerToHash(player)
	if err != nil {
		return err
	}

	if err = that.client.HSet(ctx, playerKey(player.ID), fields).Err(); err != nil {
		that.client.LRem(ctx, gamePlayersKey(player.GameID), 0, player.ID)
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

func (that *dbPlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	fields, err := that.client.HGetAll(ctx, playerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if len(fields) == 0 {
		return nil, ErrPlayerNotFound
	}

	return playerFromHash(fields)
}

func (that *dbPlayer) ListByGame(ctx context.Context, gameID string) ([]*entity.Player, error) {
	ids, err := that.client.LRange(ctx, gamePlayersKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	pipe := that.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, playerKey(id)))
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	players := make([]*entity.Player, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		player, err := playerFromHash(fields)
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}

	entity.SortByJoinOrder(players)

	return players, nil
}

func (that *dbPlayer) Update(ctx context.Context, id string, update entity.PlayerUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	exists, err := that.client.Exists(ctx, playerKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to check player: %w", err)
	}

	if exists == 0 {
		return ErrPlayerNotFound
	}

	fields := make(map[string]any, 5)
	if update.ConnectionID != nil {
		fields[fieldConnectionID] = *update.ConnectionID
	}
	if update.Money != nil {
		fields[fieldMoney] = *update.Money
	}
	if update.Status != nil {
		fields[fieldStatus] = *update.Status
	}
	if update.Bet != nil {
		betJSON, err := json.Marshal(*update.Bet)
		if err != nil {
			return fmt.Errorf("failed to marshal bet: %w", err)
		}
		fields[fieldBet] = string(betJSON)
	}
	if update.Confirmed != nil {
		fields[fieldConfirmed] = strconv.FormatBool(*update.Confirmed)
	}

	if err = that.client.HSet(ctx, playerKey(id), fields).Err(); err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	return nil
}

func (that *dbPlayer) Delete(ctx context.Context, id string) error {
	gameID, err := that.client.HGet(ctx, playerKey(id), fieldGameID).Result()
	if errors.Is(err, redis.Nil) {
		return ErrPlayerNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, playerKey(id))
		pipe.LRem(ctx, gamePlayersKey(gameID), 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}

	return nil
}

func playerToHash(player *entity.Player) (map[string]any, error) {
	bet := player.Bet
	if bet == nil {
		bet = entity.Bet{}
	}

	betJSON, err := json.Marshal(bet)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bet: %w", err)
	}

	return map[string]any{
		fieldID:           player.ID,
		fieldGameID:       player.GameID,
		fieldConnectionID: player.ConnectionID,
		fieldName:         player.Name,
		fieldMoney:        player.Money,
		fieldStatus:       player.Status,
		fieldBet:          string(betJSON),
		fieldConfirmed:    strconv.FormatBool(player.Confirmed),
		fieldJoinOrder:    player.JoinOrder,
		fieldJoinedAt:     player.JoinedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func playerFromHash(fields map[string]string) (*entity.Player, error) {
	money, err := strconv.ParseInt(fields[fieldMoney], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse money: %w", err)
	}

	joinOrder, err := strconv.Atoi(fields[fieldJoinOrder])
	if err != nil {
		return nil, fmt.Errorf("failed to parse join order: %w", err)
	}

	confirmed, err := strconv.ParseBool(fields[fieldConfirmed])
	if err != nil {
		return nil, fmt.Errorf("failed to parse confirmed flag: %w", err)
	}

	joinedAt, err := time.Parse(time.RFC3339Nano, fields[fieldJoinedAt])
	if err != nil {
		return nil, fmt.Errorf("failed to parse join time: %w", err)
	}

	bet := entity.Bet{}
	if raw := fields[fieldBet]; raw != "" {
		if err = json.Unmarshal([]byte(raw), &bet); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bet: %w", err)
		}
	}

	return &entity.Player{
		ID:           fields[fieldID],
		GameID:       fields[fieldGameID],
		ConnectionID: fields[fieldConnectionID],
		Name:         fields[fieldName],
		Money:        money,
		Status:       fields[fieldStatus],
		Bet:          bet,
		Confirmed:    confirmed,
		JoinOrder:    joinOrder,
		JoinedAt:     joinedAt,
	}, nil
}
