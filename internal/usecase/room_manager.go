package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
	"github.com/rocketscienceinc/atrapa-milio/internal/event"
	"github.com/rocketscienceinc/atrapa-milio/internal/session"
)

const (
	maxNameLength   = 32
	maxCodeAttempts = 10
)

type gameRepo interface {
	Create(ctx context.Context, game *entity.Game) error
	Update(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	GetByCode(ctx context.Context, code string) (*entity.Game, error)
}

type playerRepo interface {
	Create(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	ListByGame(ctx context.Context, gameID string) ([]*entity.Player, error)
	Update(ctx context.Context, id string, update entity.PlayerUpdate) error
	Delete(ctx context.Context, id string) error
}

type questionCatalog interface {
	Len() int
	Question(i int) (entity.Question, bool)
}

type broadcaster interface {
	Subscribe(connID, roomCode string, role session.Role)
	Unsubscribe(connID string)
	BroadcastToRoom(roomCode string, message event.Envelope)
	SendToConnection(connID string, message event.Envelope)
	SendToHosts(roomCode string, message event.Envelope)
}

type Settings struct {
	StartingMoney   int64
	BetStep         int64
	MaxRoomCapacity int
	RoundDuration   time.Duration
	StoreTimeout    time.Duration
}

// RoomManager runs the room state machine: every command is checked against the
// store and the session registry, applied, and the resulting views are pushed
// through the broadcaster.
type RoomManager struct {
	logger *slog.Logger

	gameRepo   gameRepo
	playerRepo playerRepo
	sessions   session.Registry
	hub        broadcaster
	questions  questionCatalog
	views      *event.Projector
	settings   Settings

	locks   *locker
	now     func() time.Time
	newID   func() string
	newCode func() (string, error)
}

func NewRoomManager(
	logger *slog.Logger,
	gameRepo gameRepo,
	playerRepo playerRepo,
	sessions session.Registry,
	hub broadcaster,
	questions questionCatalog,
	settings Settings,
) *RoomManager {
	if settings.StartingMoney <= 0 {
		settings.StartingMoney = entity.StartingMoney
	}

	return &RoomManager{
		logger: logger.With("component", "room_manager"),

		gameRepo:   gameRepo,
		playerRepo: playerRepo,
		sessions:   sessions,
		hub:        hub,
		questions:  questions,
		views:      event.NewProjector(questions, sessions, settings.RoundDuration),
		settings:   settings,

		locks:   newLocker(),
		now:     time.Now,
		newID:   uuid.NewString,
		newCode: newRoomCode,
	}
}

// NormalizeCode - room codes are case-insensitive on input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", false
	}
	return name, true
}

// CreateRoom - opens a waiting room and binds connID as its host.
func (that *RoomManager) CreateRoom(ctx context.Context, connID, hostName string, capacity int) (*entity.Game, error) {
	log := that.logger.With("method", "CreateRoom", "connID", connID)

	name, ok := normalizeName(hostName)
	if !ok {
		return nil, apperror.ErrInvalidHostName
	}

	if capacity < 1 || capacity > that.settings.MaxRoomCapacity {
		return nil, fmt.Errorf("%w: must be between 1 and %d", apperror.ErrInvalidCapacity, that.settings.MaxRoomCapacity)
	}

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	var game *entity.Game
	for attempt := 0; attempt < maxCodeAttempts && game == nil; attempt++ {
		code, err := that.newCode()
		if err != nil {
			return nil, err
		}

		candidate := entity.NewGame(that.newID(), code, name, capacity, that.now())

		err = that.gameRepo.Create(ctx, candidate)
		if errors.Is(err, apperror.ErrCodeTaken) {
			log.Debug("room code collision", "roomCode", code, "attempt", attempt+1)
			continue
		}

		if err != nil {
			return nil, storeError("failed to create game", err)
		}

		game = candidate
	}

	if game == nil {
		return nil, apperror.ErrCodeExhausted
	}

	that.sessions.Bind(session.Binding{
		ConnectionID: connID,
		GameID:       game.ID,
		RoomCode:     game.Code,
		Role:         session.RoleHost,
	})
	that.hub.Subscribe(connID, game.Code, session.RoleHost)

	that.hub.SendToConnection(connID, event.New(event.RoomCreated, event.RoomPayload{
		Room: that.views.Room(game, nil),
	}))

	log.Info("room created", "roomCode", game.Code, "maxPlayers", capacity)

	return game, nil
}

// JoinRoom - adds a player to a waiting room, or reattaches connID to an existing
// player of the same name whose previous connection is gone.
func (that *RoomManager) JoinRoom(ctx context.Context, connID, code, playerName string) (*entity.Player, error) {
	code = NormalizeCode(code)
	log := that.logger.With("method", "JoinRoom", "connID", connID, "roomCode", code)

	name, ok := normalizeName(playerName)
	if !ok {
		return nil, apperror.ErrInvalidPlayerName
	}

	unlock := that.locks.Lock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, err := that.gameByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	for _, existing := range players {
		if !strings.EqualFold(existing.Name, name) {
			continue
		}

		if existing.ConnectionID != connID && that.sessions.IsLive(existing.ConnectionID, existing.ID) {
			return nil, apperror.ErrNameTaken
		}

		return that.reconnect(ctx, log, connID, game, players, existing)
	}

	if binding, bound := that.sessions.Lookup(connID); bound && binding.IsPlayer() && binding.GameID == game.ID {
		return nil, apperror.ErrAlreadyInRoom
	}

	if len(players) >= game.MaxPlayers {
		return nil, apperror.ErrRoomFull
	}

	if !game.IsWaiting() {
		return nil, apperror.ErrRoomAlreadyStarted
	}

	player := entity.NewPlayer(that.newID(), game.ID, connID, name, that.settings.StartingMoney, that.now())
	if err = that.playerRepo.Create(ctx, player); err != nil {
		return nil, storeError("failed to create player", err)
	}

	players = append(players, player)

	that.bindPlayer(connID, game, player)

	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{
		Room: that.views.Room(game, players),
	}))
	that.hub.SendToHosts(game.Code, event.New(event.PlayerJoined, event.PlayerJoinedPayload{
		Player:      that.views.Player(player),
		PlayerCount: len(players),
	}))
	that.sendJoined(connID, game, players, player, false)

	log.Info("player joined", "playerID", player.ID, "players", len(players))

	return player, nil
}

func (that *RoomManager) reconnect(
	ctx context.Context,
	log *slog.Logger,
	connID string,
	game *entity.Game,
	players []*entity.Player,
	player *entity.Player,
) (*entity.Player, error) {
	update := entity.PlayerUpdate{ConnectionID: entity.Ptr(connID)}
	if err := that.playerRepo.Update(ctx, player.ID, update); err != nil {
		return nil, storeError("failed to rebind player", err)
	}
	update.Apply(player)

	that.bindPlayer(connID, game, player)

	that.sendJoined(connID, game, players, player, true)
	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{
		Room: that.views.Room(game, players),
	}))

	log.Info("player reconnected", "playerID", player.ID)

	return player, nil
}

func (that *RoomManager) bindPlayer(connID string, game *entity.Game, player *entity.Player) {
	that.sessions.Bind(session.Binding{
		ConnectionID: connID,
		GameID:       game.ID,
		RoomCode:     game.Code,
		PlayerID:     player.ID,
		Role:         session.RolePlayer,
	})
	that.hub.Subscribe(connID, game.Code, session.RolePlayer)
}

func (that *RoomManager) sendJoined(connID string, game *entity.Game, players []*entity.Player, player *entity.Player, reconnected bool) {
	that.hub.SendToConnection(connID, event.New(event.GameJoined, event.GameJoinedPayload{
		Room:        that.views.Room(game, players),
		Player:      that.views.Player(player),
		Bet:         player.Bet.Clone(),
		Reconnected: reconnected,
	}))
}

// StartGame - moves a waiting room to its first round. Starting a room that is
// already running or finished changes nothing and sends nothing.
func (that *RoomManager) StartGame(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	log := that.logger.With("method", "StartGame", "roomCode", code)

	unlock := that.locks.Lock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, err := that.gameByCode(ctx, code)
	if err != nil {
		return err
	}

	if !game.IsWaiting() {
		log.Debug("game already started", "status", game.Status)
		return nil
	}

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return err
	}

	if len(players) == 0 {
		return apperror.ErrNoPlayers
	}

	game.Start(that.now())

	if err = that.gameRepo.Update(ctx, game); err != nil {
		return storeError("failed to update game", err)
	}

	room := that.views.Room(game, players)

	that.hub.BroadcastToRoom(game.Code, event.New(event.GameStarted, event.GameStartedPayload{
		Room:     room,
		Question: room.Question,
	}))
	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{Room: room}))

	log.Info("game started", "players", len(players))

	return nil
}

// UpdateBet - replaces the caller's distribution for the current round. Only the
// caller is told about it.
func (that *RoomManager) UpdateBet(ctx context.Context, connID, code string, distribution entity.Bet) error {
	code = NormalizeCode(code)

	binding, err := that.resolvePlayer(connID, code)
	if err != nil {
		return err
	}

	unlock := that.locks.LockPlayer(code, binding.PlayerID)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, player, question, err := that.bettingState(ctx, binding)
	if err != nil {
		return err
	}

	if err = question.ValidateBet(distribution, player.Money, that.settings.BetStep); err != nil {
		return err
	}

	bet := distribution.Clone()
	update := entity.PlayerUpdate{Bet: &bet}
	if err = that.playerRepo.Update(ctx, player.ID, update); err != nil {
		return storeError("failed to update bet", err)
	}
	update.Apply(player)

	that.hub.SendToConnection(connID, event.NewBetUpdated(player))

	that.logger.Debug("bet updated", "method", "UpdateBet", "roomCode", game.Code, "playerID", player.ID, "total", bet.Total())

	return nil
}

// ConfirmBet - locks the caller's distribution. The whole bankroll has to be
// placed; confirming twice is a no-op.
func (that *RoomManager) ConfirmBet(ctx context.Context, connID, code string) error {
	code = NormalizeCode(code)

	binding, err := that.resolvePlayer(connID, code)
	if err != nil {
		return err
	}

	unlock := that.locks.LockPlayer(code, binding.PlayerID)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, err := that.gameByID(ctx, binding.GameID)
	if err != nil {
		return err
	}

	player, err := that.playerByID(ctx, binding.PlayerID)
	if err != nil {
		return err
	}

	if player.Confirmed {
		return nil
	}

	question, err := that.checkBetting(game, player)
	if err != nil {
		return err
	}

	if err = question.ValidateBet(player.Bet, player.Money, that.settings.BetStep); err != nil {
		return err
	}

	if total := player.Bet.Total(); total != player.Money {
		return fmt.Errorf("%w: %d of %d placed, the whole bankroll must be distributed", apperror.ErrInvalidBet, total, player.Money)
	}

	update := entity.PlayerUpdate{Confirmed: entity.Ptr(true)}
	if err = that.playerRepo.Update(ctx, player.ID, update); err != nil {
		return storeError("failed to confirm bet", err)
	}
	update.Apply(player)

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return err
	}

	that.hub.SendToConnection(connID, event.NewBetUpdated(player))
	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{
		Room: that.views.Room(game, players),
	}))

	that.logger.Info("bet confirmed", "method", "ConfirmBet", "roomCode", game.Code, "playerID", player.ID)

	return nil
}

// RevealResult - settles the current round for every active player. The game is
// marked revealed before any player is touched, so a round is never settled twice.
func (that *RoomManager) RevealResult(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	log := that.logger.With("method", "RevealResult", "roomCode", code)

	unlock := that.locks.Lock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, err := that.gameByCode(ctx, code)
	if err != nil {
		return err
	}

	question, err := that.currentQuestion(game)
	if err != nil {
		return err
	}

	correct := question.CorrectOption()
	if err = game.Reveal(correct); err != nil {
		return err
	}

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return err
	}

	if err = that.gameRepo.Update(ctx, game); err != nil {
		return storeError("failed to update game", err)
	}

	eliminated := 0
	for _, player := range players {
		if !player.IsActive() {
			continue
		}

		update := player.Settle(correct)
		if err = that.playerRepo.Update(ctx, player.ID, update); err != nil {
			log.Error("failed to settle player", "playerID", player.ID, "error", err)
			continue
		}
		update.Apply(player)

		if !player.IsActive() {
			eliminated++
		}
	}

	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{
		Room: that.views.Room(game, players),
	}))

	log.Info("round revealed", "round", game.CurrentQuestionIndex+1, "answer", correct, "eliminated", eliminated)

	return nil
}

// NextQuestion - opens the next round, or finishes the game after the last one.
// The current round has to be revealed first.
func (that *RoomManager) NextQuestion(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	log := that.logger.With("method", "NextQuestion", "roomCode", code)

	unlock := that.locks.Lock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, err := that.gameByCode(ctx, code)
	if err != nil {
		return err
	}

	finished, err := game.Advance(that.questions.Len(), that.now())
	if err != nil {
		return err
	}

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return err
	}

	if err = that.gameRepo.Update(ctx, game); err != nil {
		return storeError("failed to update game", err)
	}

	for _, player := range players {
		if !player.IsActive() {
			continue
		}

		var update entity.PlayerUpdate
		switch {
		case finished && player.Money > 0:
			update = entity.PlayerUpdate{Status: entity.Ptr(entity.PlayerWinner)}
		case finished:
			continue
		default:
			update = entity.ResetRound()
		}

		if err = that.playerRepo.Update(ctx, player.ID, update); err != nil {
			log.Error("failed to update player", "playerID", player.ID, "error", err)
			continue
		}
		update.Apply(player)
	}

	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{
		Room: that.views.Room(game, players),
	}))

	if finished {
		log.Info("game finished", "players", len(players))
	} else {
		log.Info("next round", "round", game.CurrentQuestionIndex+1)
	}

	return nil
}

// KickPlayer - removes a player from the room in any state.
func (that *RoomManager) KickPlayer(ctx context.Context, code, playerID string) error {
	code = NormalizeCode(code)
	log := that.logger.With("method", "KickPlayer", "roomCode", code, "playerID", playerID)

	unlock := that.locks.Lock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	game, err := that.gameByCode(ctx, code)
	if err != nil {
		return err
	}

	player, err := that.playerByID(ctx, playerID)
	if err != nil {
		return err
	}

	if player.GameID != game.ID {
		return apperror.ErrPlayerNotFound
	}

	if err = that.playerRepo.Delete(ctx, player.ID); err != nil {
		return storeError("failed to delete player", err)
	}

	if that.sessions.IsLive(player.ConnectionID, player.ID) {
		that.hub.SendToConnection(player.ConnectionID, event.New(event.PlayerRemoved, event.PlayerRemovedPayload{
			RoomCode: game.Code,
			PlayerID: player.ID,
		}))
		that.sessions.Unbind(player.ConnectionID)
		that.hub.Unsubscribe(player.ConnectionID)
	}

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return err
	}

	that.hub.BroadcastToRoom(game.Code, event.New(event.StateUpdate, event.RoomPayload{
		Room: that.views.Room(game, players),
	}))

	log.Info("player removed")

	return nil
}

// WatchRoom - binds connID as a host of an existing room and sends it a snapshot.
func (that *RoomManager) WatchRoom(ctx context.Context, connID, code string) error {
	code = NormalizeCode(code)

	unlock := that.locks.RLock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	room, game, err := that.snapshot(ctx, code)
	if err != nil {
		return err
	}

	that.sessions.Bind(session.Binding{
		ConnectionID: connID,
		GameID:       game.ID,
		RoomCode:     game.Code,
		Role:         session.RoleHost,
	})
	that.hub.Subscribe(connID, game.Code, session.RoleHost)
	that.hub.SendToConnection(connID, event.New(event.StateUpdate, event.RoomPayload{Room: room}))

	that.logger.Info("host attached", "method", "WatchRoom", "roomCode", code, "connID", connID)

	return nil
}

// Room - returns the current view of a room.
func (that *RoomManager) Room(ctx context.Context, code string) (event.RoomView, error) {
	code = NormalizeCode(code)

	unlock := that.locks.RLock(code)
	defer unlock()

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	room, _, err := that.snapshot(ctx, code)
	return room, err
}

// Disconnect - forgets the session of connID once in-flight commands of its room
// are done. Players stay in the store and can rejoin by name.
func (that *RoomManager) Disconnect(ctx context.Context, connID string) {
	log := that.logger.With("method", "Disconnect", "connID", connID)

	binding, ok := that.sessions.Lookup(connID)
	if !ok {
		return
	}

	unlock := that.locks.Lock(binding.RoomCode)
	defer unlock()

	current, ok := that.sessions.Unbind(connID)
	if !ok || !current.IsPlayer() {
		return
	}

	ctx, cancel := that.storeContext(ctx)
	defer cancel()

	room, _, err := that.snapshot(ctx, current.RoomCode)
	if err != nil {
		log.Warn("failed to load room after disconnect", "roomCode", current.RoomCode, "error", err)
		return
	}

	that.hub.BroadcastToRoom(current.RoomCode, event.New(event.StateUpdate, event.RoomPayload{Room: room}))

	log.Info("player disconnected", "roomCode", current.RoomCode, "playerID", current.PlayerID)
}

func (that *RoomManager) snapshot(ctx context.Context, code string) (event.RoomView, *entity.Game, error) {
	game, err := that.gameByCode(ctx, code)
	if err != nil {
		return event.RoomView{}, nil, err
	}

	players, err := that.listPlayers(ctx, game.ID)
	if err != nil {
		return event.RoomView{}, nil, err
	}

	return that.views.Room(game, players), game, nil
}

// resolvePlayer - the connection must act for a player of this very room.
func (that *RoomManager) resolvePlayer(connID, code string) (session.Binding, error) {
	binding, ok := that.sessions.Lookup(connID)
	if !ok || !binding.IsPlayer() || binding.RoomCode != code {
		return session.Binding{}, apperror.ErrNotInGame
	}

	return binding, nil
}

func (that *RoomManager) bettingState(ctx context.Context, binding session.Binding) (*entity.Game, *entity.Player, entity.Question, error) {
	game, err := that.gameByID(ctx, binding.GameID)
	if err != nil {
		return nil, nil, entity.Question{}, err
	}

	player, err := that.playerByID(ctx, binding.PlayerID)
	if err != nil {
		return nil, nil, entity.Question{}, err
	}

	question, err := that.checkBetting(game, player)
	if err != nil {
		return nil, nil, entity.Question{}, err
	}

	if player.Confirmed {
		return nil, nil, entity.Question{}, apperror.ErrBetLocked
	}

	return game, player, question, nil
}

func (that *RoomManager) checkBetting(game *entity.Game, player *entity.Player) (entity.Question, error) {
	question, err := that.currentQuestion(game)
	if err != nil {
		return entity.Question{}, err
	}

	if game.IsRevealed() {
		return entity.Question{}, apperror.ErrAlreadyRevealed
	}

	if !player.IsActive() {
		return entity.Question{}, apperror.ErrPlayerNotActive
	}

	return question, nil
}

func (that *RoomManager) currentQuestion(game *entity.Game) (entity.Question, error) {
	if err := game.ConfirmPlayingState(); err != nil {
		return entity.Question{}, err
	}

	question, ok := that.questions.Question(game.CurrentQuestionIndex)
	if !ok {
		return entity.Question{}, fmt.Errorf("no question at index %d", game.CurrentQuestionIndex)
	}

	return question, nil
}

func (that *RoomManager) gameByCode(ctx context.Context, code string) (*entity.Game, error) {
	game, err := that.gameRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, storeError("failed to get game", err)
	}
	return game, nil
}

func (that *RoomManager) gameByID(ctx context.Context, id string) (*entity.Game, error) {
	game, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to get game", err)
	}
	return game, nil
}

func (that *RoomManager) playerByID(ctx context.Context, id string) (*entity.Player, error) {
	player, err := that.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("failed to get player", err)
	}
	return player, nil
}

func (that *RoomManager) listPlayers(ctx context.Context, gameID string) ([]*entity.Player, error) {
	players, err := that.playerRepo.ListByGame(ctx, gameID)
	if err != nil {
		return nil, storeError("failed to list players", err)
	}
	return players, nil
}

func (that *RoomManager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if that.settings.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, that.settings.StoreTimeout)
}

// storeError - keeps domain errors as they are and marks deadlines as retryable.
func storeError(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", msg, apperror.ErrStoreTimeout, err)
	}

	if apperror.IsClientVisible(err) {
		return err
	}

	return fmt.Errorf("%s: %w", msg, err)
}
