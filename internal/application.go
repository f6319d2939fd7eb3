package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/atrapa-milio/internal/catalog"
	"github.com/rocketscienceinc/atrapa-milio/internal/config"
	"github.com/rocketscienceinc/atrapa-milio/internal/repository"
	"github.com/rocketscienceinc/atrapa-milio/internal/repository/memory"
	"github.com/rocketscienceinc/atrapa-milio/internal/repository/postgres"
	"github.com/rocketscienceinc/atrapa-milio/internal/repository/storage"
	"github.com/rocketscienceinc/atrapa-milio/internal/session"
	"github.com/rocketscienceinc/atrapa-milio/internal/usecase"
	"github.com/rocketscienceinc/atrapa-milio/transport/rest"
	"github.com/rocketscienceinc/atrapa-milio/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

type stores struct {
	games   repository.GameRepository
	players repository.PlayerRepository
	closer  io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	questions, err := catalog.Load(conf.Game.QuestionsPath)
	if err != nil {
		return fmt.Errorf("could not load questions: %w", err)
	}

	store, err := openStores(ctx, log, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = store.closer.Close(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	hub := websocket.NewHub(logger)
	roomManager := usecase.NewRoomManager(logger, store.games, store.players, session.NewMemoryRegistry(), hub, questions, usecase.Settings{
		StartingMoney:   conf.Game.StartingMoney,
		BetStep:         conf.Game.BetStep,
		MaxRoomCapacity: conf.Game.MaxRoomCapacity,
		RoundDuration:   conf.Game.QuestionDuration(),
		StoreTimeout:    conf.StoreTimeout,
	})

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		httpServer := rest.New(logger, roomManager, conf.PublicURL)
		if httpErr := httpServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, roomManager, hub, websocket.Options{
			BetRatePerSecond: conf.BetRate.PerSecond,
			BetBurst:         conf.BetRate.Burst,
		})
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// openStores - connects the configured backend and builds its repositories.
func openStores(ctx context.Context, log *slog.Logger, conf *config.Config) (*stores, error) {
	switch conf.Storage {
	case config.StorageRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		log.Info("using redis storage", "addr", redisAddrString)

		return &stores{
			games:   repository.NewGameRepository(redisStorage.Connection),
			players: repository.NewPlayerRepository(redisStorage.Connection),
			closer:  redisStorage,
		}, nil

	case config.StoragePostgres:
		pgStorage, err := storage.NewPostgresStorage(ctx, conf.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("could not connect to postgres storage: %w", err)
		}

		if conf.Postgres.AutoMigrate {
			if err = postgres.Migrate(pgStorage.Connection); err != nil {
				_ = pgStorage.Close()
				return nil, err
			}
		}

		log.Info("using postgres storage", "autoMigrate", conf.Postgres.AutoMigrate)

		return &stores{
			games:   postgres.NewGameRepository(pgStorage.Connection),
			players: postgres.NewPlayerRepository(pgStorage.Connection),
			closer:  pgStorage,
		}, nil

	case config.StorageMemory:
		log.Warn("using in-memory storage, rooms are lost on restart")

		return &stores{
			games:   memory.NewGameRepository(),
			players: memory.NewPlayerRepository(),
			closer:  nopCloser{},
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorage, conf.Storage)
}
