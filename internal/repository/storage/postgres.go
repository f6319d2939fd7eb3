package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrEmptyDSN = errors.New("postgres dsn is not set")

type PostgresStorage struct {
	Connection *gorm.DB
}

// NewPostgresStorage - opens a gorm handle and checks the server is reachable.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get Postgres handle: %w", err)
	}

	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresStorage{Connection: conn}, nil
}

func (that *PostgresStorage) Close() error {
	sqlDB, err := that.Connection.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
