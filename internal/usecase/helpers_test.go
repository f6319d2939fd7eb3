package usecase

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/atrapa-milio/internal/catalog"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
	"github.com/rocketscienceinc/atrapa-milio/internal/event"
	"github.com/rocketscienceinc/atrapa-milio/internal/repository/memory"
	"github.com/rocketscienceinc/atrapa-milio/internal/session"
)

const (
	toRoom       = "room"
	toConnection = "connection"
	toHosts      = "hosts"
)

type delivery struct {
	Kind    string
	Target  string
	Message event.Envelope
}

// recordingHub keeps everything the manager sends, in order.
type recordingHub struct {
	mu            sync.Mutex
	deliveries    []delivery
	subscriptions map[string]string
}

func newRecordingHub() *recordingHub {
	return &recordingHub{subscriptions: make(map[string]string)}
}

func (that *recordingHub) Subscribe(connID, roomCode string, _ session.Role) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.subscriptions[connID] = roomCode
}

func (that *recordingHub) Unsubscribe(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.subscriptions, connID)
}

func (that *recordingHub) BroadcastToRoom(roomCode string, message event.Envelope) {
	that.record(toRoom, roomCode, message)
}

func (that *recordingHub) SendToConnection(connID string, message event.Envelope) {
	that.record(toConnection, connID, message)
}

func (that *recordingHub) SendToHosts(roomCode string, message event.Envelope) {
	that.record(toHosts, roomCode, message)
}

func (that *recordingHub) record(kind, target string, message event.Envelope) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.deliveries = append(that.deliveries, delivery{Kind: kind, Target: target, Message: message})
}

func (that *recordingHub) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.deliveries = nil
}

func (that *recordingHub) All() []delivery {
	that.mu.Lock()
	defer that.mu.Unlock()
	return append([]delivery(nil), that.deliveries...)
}

func (that *recordingHub) Find(kind string, action event.Kind) []delivery {
	var found []delivery
	for _, d := range that.All() {
		if d.Kind == kind && d.Message.Action == action {
			found = append(found, d)
		}
	}
	return found
}

func (that *recordingHub) LastRoom(t *testing.T, action event.Kind) event.RoomView {
	t.Helper()

	found := that.Find(toRoom, action)
	require.NotEmpty(t, found, "no %s broadcast", action)

	payload, ok := found[len(found)-1].Message.Payload.(event.RoomPayload)
	require.True(t, ok)
	return payload.Room
}

func (that *recordingHub) SubscribedTo(connID string) string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.subscriptions[connID]
}

// testQuestions: round one is won on A, round two on B, round three is final on A.
func testQuestions(t *testing.T) *catalog.Catalog {
	t.Helper()

	questions, err := catalog.New([]entity.Question{
		{Order: 1, Type: entity.QuestionNormal, Text: "first", MaxOptions: 2, Options: []entity.Option{
			{ID: "A", Text: "a", IsCorrect: true}, {ID: "B", Text: "b"}, {ID: "C", Text: "c"},
		}},
		{Order: 2, Type: entity.QuestionReduced, Text: "second", MaxOptions: 2, Options: []entity.Option{
			{ID: "A", Text: "a"}, {ID: "B", Text: "b", IsCorrect: true}, {ID: "C", Text: "c"},
		}},
		{Order: 3, Type: entity.QuestionFinal, Text: "third", MaxOptions: 1, Options: []entity.Option{
			{ID: "A", Text: "a", IsCorrect: true}, {ID: "B", Text: "b"},
		}},
	})
	require.NoError(t, err)

	return questions
}

type fixture struct {
	manager  *RoomManager
	games    *memory.GameRepository
	players  *memory.PlayerRepository
	sessions *session.MemoryRegistry
	hub      *recordingHub
}

func testSettings() Settings {
	return Settings{
		StartingMoney:   entity.StartingMoney,
		BetStep:         25_000,
		MaxRoomCapacity: 30,
		RoundDuration:   time.Minute,
		StoreTimeout:    time.Second,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		games:    memory.NewGameRepository(),
		players:  memory.NewPlayerRepository(),
		sessions: session.NewMemoryRegistry(),
		hub:      newRecordingHub(),
	}

	f.manager = NewRoomManager(discardLogger(), f.games, f.players, f.sessions, f.hub, testQuestions(t), testSettings())

	var ids int
	f.manager.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}

	return f
}

// room creates a room hosted on "host-conn" and joins the given players on
// connections named after them.
func (that *fixture) room(t *testing.T, capacity int, names ...string) (*entity.Game, map[string]*entity.Player) {
	t.Helper()

	ctx := t.Context()

	game, err := that.manager.CreateRoom(ctx, "host-conn", "Host", capacity)
	require.NoError(t, err)

	players := make(map[string]*entity.Player, len(names))
	for _, name := range names {
		player, err := that.manager.JoinRoom(ctx, "conn-"+name, game.Code, name)
		require.NoError(t, err)
		players[name] = player
	}

	return game, players
}

func (that *fixture) started(t *testing.T, names ...string) (*entity.Game, map[string]*entity.Player) {
	t.Helper()

	game, players := that.room(t, 10, names...)
	require.NoError(t, that.manager.StartGame(t.Context(), game.Code))

	return game, players
}

func (that *fixture) player(t *testing.T, id string) *entity.Player {
	t.Helper()

	player, err := that.players.GetByID(t.Context(), id)
	require.NoError(t, err)
	return player
}

func (that *fixture) game(t *testing.T, code string) *entity.Game {
	t.Helper()

	game, err := that.games.GetByCode(t.Context(), code)
	require.NoError(t, err)
	return game
}

// allIn places the whole bankroll on option and confirms it.
func (that *fixture) allIn(t *testing.T, name, code, option string) {
	t.Helper()

	ctx := t.Context()
	player := that.player(t, that.playerID(t, name))

	require.NoError(t, that.manager.UpdateBet(ctx, "conn-"+name, code, entity.Bet{option: player.Money}))
	require.NoError(t, that.manager.ConfirmBet(ctx, "conn-"+name, code))
}

func (that *fixture) playerID(t *testing.T, name string) string {
	t.Helper()

	binding, ok := that.sessions.Lookup("conn-" + name)
	require.True(t, ok, "no session for %s", name)
	return binding.PlayerID
}
