package entity

import (
	"sort"
	"time"
)

const (
	PlayerActive     = "active"
	PlayerEliminated = "eliminated"
	PlayerWinner     = "winner"
)

const StartingMoney int64 = 1_000_000

// Bet maps an option letter to the amount placed on it.
type Bet map[string]int64

func (that Bet) Total() int64 {
	var total int64
	for _, amount := range that {
		total += amount
	}
	return total
}

// OptionsUsed counts only options holding a strictly positive amount.
func (that Bet) OptionsUsed() int {
	used := 0
	for _, amount := range that {
		if amount > 0 {
			used++
		}
	}
	return used
}

func (that Bet) Clone() Bet {
	clone := make(Bet, len(that))
	for option, amount := range that {
		clone[option] = amount
	}
	return clone
}

type Player struct {
	ID           string    `json:"id"`
	GameID       string    `json:"game_id"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Name         string    `json:"name"`
	Money        int64     `json:"money"`
	Status       string    `json:"status"`
	Bet          Bet       `json:"bet"`
	Confirmed    bool      `json:"confirmed"`
	JoinOrder    int       `json:"join_order"`
	JoinedAt     time.Time `json:"joined_at"`
}

func NewPlayer(id, gameID, connID, name string, money int64, now time.Time) *Player {
	return &Player{
		ID:           id,
		GameID:       gameID,
		ConnectionID: connID,
		Name:         name,
		Money:        money,
		Status:       PlayerActive,
		Bet:          Bet{},
		JoinedAt:     now.UTC(),
	}
}

func (that *Player) IsActive() bool {
	return that.Status == PlayerActive
}

// Settle applies the round outcome: the player keeps only the money placed on the
// correct option, and is eliminated when that pile is empty.
func (that *Player) Settle(correctOption string) PlayerUpdate {
	money := that.Bet[correctOption]

	status := PlayerActive
	if money == 0 {
		status = PlayerEliminated
	}

	return PlayerUpdate{Money: &money, Status: &status}
}

// PlayerUpdate is a partial update; nil fields are left untouched.
type PlayerUpdate struct {
	ConnectionID *string
	Money        *int64
	Status       *string
	Bet          *Bet
	Confirmed    *bool
}

func (that PlayerUpdate) IsEmpty() bool {
	return that.ConnectionID == nil && that.Money == nil && that.Status == nil && that.Bet == nil && that.Confirmed == nil
}

func (that PlayerUpdate) Apply(player *Player) {
	if that.ConnectionID != nil {
		player.ConnectionID = *that.ConnectionID
	}
	if that.Money != nil {
		player.Money = *that.Money
	}
	if that.Status != nil {
		player.Status = *that.Status
	}
	if that.Bet != nil {
		player.Bet = that.Bet.Clone()
	}
	if that.Confirmed != nil {
		player.Confirmed = *that.Confirmed
	}
}

// ResetRound clears the wager of an active player for the next round.
func ResetRound() PlayerUpdate {
	bet := Bet{}
	confirmed := false
	return PlayerUpdate{Bet: &bet, Confirmed: &confirmed}
}

// SortLeaderboard orders players by money descending, then by join order.
func SortLeaderboard(players []*Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Money != players[j].Money {
			return players[i].Money > players[j].Money
		}
		return players[i].JoinOrder < players[j].JoinOrder
	})
}

// SortByJoinOrder orders players by the order they entered the room.
func SortByJoinOrder(players []*Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].JoinOrder < players[j].JoinOrder
	})
}

func Ptr[T any](v T) *T {
	return &v
}
