// Package store persists hosted events in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/capitalize-ai/hostbot/internal/clock"
	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
	"github.com/capitalize-ai/hostbot/pkg/metrics"
)

const createEventsTable = `CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	host_id BIGINT NOT NULL,
	host_display_name VARCHAR(64),
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP NOT NULL,
	cost NUMERIC NOT NULL,
	area VARCHAR(50) NOT NULL
)`

const createEndTimeIndex = `CREATE INDEX IF NOT EXISTS idx_events_end_time ON events (end_time)`

// Operation names reported in errors and metrics.
const (
	OpInit          = "init"
	OpAdd           = "add"
	OpListUpcoming  = "list_upcoming"
	OpDeleteExpired = "delete_expired"
	OpPing          = "ping"
)

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err carries a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to PostgreSQL and configures the pool.
func Open(dsn string, pool PoolConfig, log *logger.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	return db, nil
}

// EventStore is the durable event repository. It is safe for concurrent use;
// each call checks a connection out of the pool and returns it before
// returning.
type EventStore struct {
	db    *gorm.DB
	clock clock.Clock
}

// New creates an event store over db. "Now" for listing and expiry comes from
// clk.
func New(db *gorm.DB, clk clock.Clock) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db must not be nil")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock must not be nil")
	}
	return &EventStore{db: db, clock: clk}, nil
}

// Init creates the events table and its end_time index if missing.
func (s *EventStore) Init(ctx context.Context) (err error) {
	defer observe(OpInit, time.Now(), &err)

	for _, stmt := range []string{createEventsTable, createEndTimeIndex} {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return &PersistenceError{Op: OpInit, Err: err}
		}
	}
	return nil
}

// Add inserts one event and returns its id.
func (s *EventStore) Add(ctx context.Context, in model.NewEvent) (id int64, err error) {
	defer observe(OpAdd, time.Now(), &err)

	row := in.Record()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, &PersistenceError{Op: OpAdd, Err: err}
	}
	return row.ID, nil
}

// ListUpcoming returns events that have not ended yet, earliest start first.
func (s *EventStore) ListUpcoming(ctx context.Context) (events []model.Event, err error) {
	defer observe(OpListUpcoming, time.Now(), &err)

	events = []model.Event{}
	err = s.db.WithContext(ctx).
		Where("end_time > ?", s.clock.Now()).
		Order("start_time ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, &PersistenceError{Op: OpListUpcoming, Err: err}
	}
	return events, nil
}

// DeleteExpired removes every event that ended before now and reports how
// many rows went away. Repeating it is harmless.
func (s *EventStore) DeleteExpired(ctx context.Context) (deleted int64, err error) {
	defer observe(OpDeleteExpired, time.Now(), &err)

	res := s.db.WithContext(ctx).
		Where("end_time < ?", s.clock.Now()).
		Delete(&model.Event{})
	if res.Error != nil {
		return 0, &PersistenceError{Op: OpDeleteExpired, Err: res.Error}
	}
	return res.RowsAffected, nil
}

// Ping checks database connectivity.
func (s *EventStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &PersistenceError{Op: OpPing, Err: err}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &PersistenceError{Op: OpPing, Err: err}
	}
	return nil
}

// Close releases the pool.
func (s *EventStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOp(op, *err, time.Since(start).Seconds())
}
