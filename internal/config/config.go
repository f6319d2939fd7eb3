package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

var ErrUnknownStorage = errors.New("unknown storage backend")

type Config struct {
	LogLevel     string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort     string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort   string        `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	PublicURL    string        `yaml:"public-url" env:"PUBLIC_URL" env-default:"http://localhost:5173"`
	Storage      string        `yaml:"storage" env:"STORAGE" env-default:"redis"`
	StoreTimeout time.Duration `yaml:"store-timeout" env:"STORE_TIMEOUT" env-default:"3s"`
	Redis        Redis         `yaml:"redis"`
	Postgres     Postgres      `yaml:"postgres"`
	Game         Game          `yaml:"game"`
	BetRate      BetRate       `yaml:"bet-rate"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Postgres struct {
	DSN         string `yaml:"dsn" env:"DATABASE_URL"`
	AutoMigrate bool   `yaml:"auto-migrate" env:"POSTGRES_AUTO_MIGRATE" env-default:"false"`
}

type Game struct {
	StartingMoney   int64  `yaml:"starting-money" env:"GAME_STARTING_MONEY" env-default:"1000000"`
	BetStep         int64  `yaml:"bet-step" env:"GAME_BET_STEP" env-default:"25000"`
	MaxRoomCapacity int    `yaml:"max-room-capacity" env:"GAME_MAX_ROOM_CAPACITY" env-default:"30"`
	QuestionSeconds int    `yaml:"question-seconds" env:"GAME_QUESTION_SECONDS" env-default:"60"`
	QuestionsPath   string `yaml:"questions-path" env:"GAME_QUESTIONS_PATH"`
}

type BetRate struct {
	PerSecond float64 `yaml:"per-second" env:"BET_RATE_PER_SECOND" env-default:"10"`
	Burst     int     `yaml:"burst" env:"BET_RATE_BURST" env-default:"5"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load - reads .env (if any) into the environment, then path, then the environment.
// A missing config file is not an error: defaults and env vars are used instead.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err = cleanenv.ReadConfig(path, config); err != nil {
			return nil, err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadDotEnv - existing environment variables win over the file.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	return godotenv.Load(path)
}

func (that *Config) Validate() error {
	switch that.Storage {
	case StorageRedis, StorageMemory:
	case StoragePostgres:
		if that.Postgres.DSN == "" {
			return fmt.Errorf("postgres storage needs postgres.dsn or DATABASE_URL")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, that.Storage)
	}

	if that.Game.BetStep <= 0 || that.Game.StartingMoney <= 0 {
		return fmt.Errorf("game money settings must be positive")
	}

	if that.Game.MaxRoomCapacity < 1 {
		return fmt.Errorf("game.max-room-capacity must be at least 1")
	}

	return nil
}

// QuestionDuration - the betting window of one round.
func (that *Game) QuestionDuration() time.Duration {
	return time.Duration(that.QuestionSeconds) * time.Second
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
