package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/rocketscienceinc/atrapa-milio/internal/apperror"
	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
	"github.com/rocketscienceinc/atrapa-milio/internal/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	shutdownWait   = 5 * time.Second
)

type roomManager interface {
	CreateRoom(ctx context.Context, connID, hostName string, capacity int) (*entity.Game, error)
	JoinRoom(ctx context.Context, connID, code, playerName string) (*entity.Player, error)
	StartGame(ctx context.Context, code string) error
	UpdateBet(ctx context.Context, connID, code string, distribution entity.Bet) error
	ConfirmBet(ctx context.Context, connID, code string) error
	RevealResult(ctx context.Context, code string) error
	NextQuestion(ctx context.Context, code string) error
	KickPlayer(ctx context.Context, code, playerID string) error
	WatchRoom(ctx context.Context, connID, code string) error
	Disconnect(ctx context.Context, connID string)
}

type Options struct {
	BetRatePerSecond float64
	BetBurst         int
}

type handler func(ctx context.Context, c *client, payload json.RawMessage) error

type Server struct {
	logger   *slog.Logger
	manager  roomManager
	hub      *Hub
	validate *validator.Validate
	options  Options
	upgrader websocket.Upgrader

	handlers map[event.Kind]handler
}

func New(logger *slog.Logger, manager roomManager, hub *Hub, options Options) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		manager:  manager,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		options:  options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[event.Kind]handler),
	}

	server.handlers[event.CreateRoom] = server.handleCreateRoom
	server.handlers[event.JoinRoom] = server.handleJoinRoom
	server.handlers[event.StartGame] = server.handleStartGame
	server.handlers[event.UpdateBet] = server.handleUpdateBet
	server.handlers[event.ConfirmBet] = server.handleConfirmBet
	server.handlers[event.RevealResult] = server.handleRevealResult
	server.handlers[event.NextQuestion] = server.handleNextQuestion
	server.handlers[event.KickPlayer] = server.handleKickPlayer
	server.handlers[event.WatchRoom] = server.handleWatchRoom

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)
	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown websocket server", "error", err)
		}
	}()

	that.logger.Info("websocket server listening", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn, that.newBetLimiter())
	that.hub.Register(c)

	log.Info("WebSocket connection established", "connID", c.id, "remote", req.RemoteAddr)

	go that.writeMessages(c)
	that.readMessages(req.Context(), c)
}

// newBetLimiter - UPDATE_BET is throttled per connection; a zero rate disables it.
func (that *Server) newBetLimiter() *rate.Limiter {
	if that.options.BetRatePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	burst := max(that.options.BetBurst, 1)
	return rate.NewLimiter(rate.Limit(that.options.BetRatePerSecond), burst)
}

// readMessages - processes messages from the client until the socket closes.
func (that *Server) readMessages(ctx context.Context, c *client) {
	log := that.logger.With("method", "readMessages", "connID", c.id)

	defer func() {
		// detached so the session is released even when the server is stopping
		that.manager.Disconnect(context.WithoutCancel(ctx), c.id)
		that.hub.Unregister(c.id)
		log.Info("WebSocket connection closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn("unexpected close", "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			that.reply(c, "", fmt.Errorf("%w: text frames only", apperror.ErrInvalidPayload))
			continue
		}

		that.handleMessage(ctx, c, data)
	}
}

// writeMessages - the only writer of c.conn.
func (that *Server) writeMessages(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				that.logger.Debug("failed to write message", "connID", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (that *Server) handleMessage(ctx context.Context, c *client, data []byte) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		that.reply(c, "", fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err))
		return
	}

	kind, err := event.ParseCommand(message.Action)
	if err != nil {
		that.reply(c, event.Kind(message.Action), err)
		return
	}

	if err = that.handlers[kind](ctx, c, message.Payload); err != nil {
		that.reply(c, kind, err)
	}
}

// reply - reports a rejected command to the connection that sent it.
func (that *Server) reply(c *client, command event.Kind, err error) {
	log := that.logger.With("method", "reply", "connID", c.id, "command", command)

	if apperror.IsClientVisible(err) {
		log.Debug("command rejected", "error", err)
	} else {
		log.Error("command failed", "error", err)
	}

	that.hub.SendToConnection(c.id, event.NewError(command, err))
}
