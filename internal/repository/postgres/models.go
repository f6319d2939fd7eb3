package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

type gameModel struct {
	ID                   string    `gorm:"primaryKey;size:36"`
	Code                 string    `gorm:"size:12;uniqueIndex;not null"`
	HostName             string    `gorm:"size:64;not null"`
	MaxPlayers           int       `gorm:"not null"`
	Status               string    `gorm:"size:16;not null"`
	CurrentQuestionIndex int       `gorm:"not null;default:0"`
	RevealedAnswer       string    `gorm:"size:8;not null;default:''"`
	RoundStartedAt       time.Time `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (gameModel) TableName() string {
	return "games"
}

type playerModel struct {
	ID           string         `gorm:"primaryKey;size:36"`
	GameID       string         `gorm:"size:36;index;not null"`
	ConnectionID string         `gorm:"size:64;not null;default:''"`
	Name         string         `gorm:"size:64;not null"`
	Money        int64          `gorm:"not null"`
	Status       string         `gorm:"size:16;not null"`
	Bet          datatypes.JSON `gorm:"type:jsonb;not null"`
	Confirmed    bool           `gorm:"not null;default:false"`
	JoinOrder    int            `gorm:"not null"`
	JoinedAt     time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (playerModel) TableName() string {
	return "players"
}

// Migrate - creates or updates the tables used by the postgres store.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("db connection is nil")
	}

	if err := db.AutoMigrate(&gameModel{}, &playerModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	return nil
}

func gameToModel(game *entity.Game) gameModel {
	return gameModel{
		ID:                   game.ID,
		Code:                 game.Code,
		HostName:             game.HostName,
		MaxPlayers:           game.MaxPlayers,
		Status:               game.Status,
		CurrentQuestionIndex: game.CurrentQuestionIndex,
		RevealedAnswer:       game.RevealedAnswer,
		RoundStartedAt:       game.RoundStartedAt.UTC(),
		CreatedAt:            game.CreatedAt.UTC(),
	}
}

func (that gameModel) toEntity() *entity.Game {
	return &entity.Game{
		ID:                   that.ID,
		Code:                 that.Code,
		HostName:             that.HostName,
		MaxPlayers:           that.MaxPlayers,
		Status:               that.Status,
		CurrentQuestionIndex: that.CurrentQuestionIndex,
		RevealedAnswer:       that.RevealedAnswer,
		RoundStartedAt:       that.RoundStartedAt.UTC(),
		CreatedAt:            that.CreatedAt.UTC(),
	}
}

func betToJSON(bet entity.Bet) (datatypes.JSON, error) {
	if bet == nil {
		bet = entity.Bet{}
	}

	data, err := json.Marshal(bet)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bet: %w", err)
	}

	return datatypes.JSON(data), nil
}

func playerToModel(player *entity.Player) (playerModel, error) {
	bet, err := betToJSON(player.Bet)
	if err != nil {
		return playerModel{}, err
	}

	return playerModel{
		ID:           player.ID,
		GameID:       player.GameID,
		ConnectionID: player.ConnectionID,
		Name:         player.Name,
		Money:        player.Money,
		Status:       player.Status,
		Bet:          bet,
		Confirmed:    player.Confirmed,
		JoinOrder:    player.JoinOrder,
		JoinedAt:     player.JoinedAt.UTC(),
	}, nil
}

func (that playerModel) toEntity() (*entity.Player, error) {
	bet := entity.Bet{}
	if len(that.Bet) > 0 {
		if err := json.Unmarshal(that.Bet, &bet); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bet: %w", err)
		}
	}

	return &entity.Player{
		ID:           that.ID,
		GameID:       that.GameID,
		ConnectionID: that.ConnectionID,
		Name:         that.Name,
		Money:        that.Money,
		Status:       that.Status,
		Bet:          bet,
		Confirmed:    that.Confirmed,
		JoinOrder:    that.JoinOrder,
		JoinedAt:     that.JoinedAt.UTC(),
	}, nil
}
