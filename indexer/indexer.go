package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"puzzlechain/core"
	"puzzlechain/core/events"
	"puzzlechain/observability/metrics"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	subscriberName = "indexer"
	subscribeBuf   = 256
)

// publicAttributes lists the event attributes that may be persisted.
var publicAttributes = []string{"puzzle", "puzzles"}

// Source is the event feed the indexer follows.
type Source interface {
	Subscribe(name string, buffer int) (<-chan events.Event, func())
}

// Open connects to the index database and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer writes committed events into a relational store.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.IndexerMetrics
}

func New(db *gorm.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		db:      db,
		logger:  logger.With(slog.String("component", "indexer")),
		metrics: metrics.Indexer(),
	}
}

// Run follows src until ctx is cancelled. Write failures are logged and
// counted but do not stop the feed.
func (ix *Indexer) Run(ctx context.Context, src Source) error {
	if src == nil {
		return errors.New("indexer: nil source")
	}
	updates, cancel := src.Subscribe(subscriberName, subscribeBuf)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			committed, ok := evt.(core.CommittedEvent)
			if !ok {
				continue
			}
			if err := ix.Record(ctx, committed); err != nil {
				ix.metrics.RecordFailure("write")
				ix.logger.Warn("index event failed",
					slog.String("type", committed.EventType()),
					slog.Uint64("height", committed.Height),
					slog.Any("error", err))
			}
		}
	}
}

// Record persists a single committed event.
func (ix *Indexer) Record(ctx context.Context, evt core.CommittedEvent) error {
	if evt.Event == nil {
		return nil
	}
	rec := EventRecord{
		Height:  evt.Height,
		TxHash:  "0x" + hex.EncodeToString(evt.TxHash),
		Type:    evt.Event.Type,
		Puzzles: publicPuzzles(evt.Event.Attributes),
	}
	if err := ix.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	ix.metrics.RecordWritten(rec.Type)
	ix.metrics.SetHeight(rec.Height)
	return nil
}

// Events returns indexed events in commit order, optionally restricted to a
// type prefix.
func (ix *Indexer) Events(ctx context.Context, typePrefix string, limit int) ([]EventRecord, error) {
	query := ix.db.WithContext(ctx).Order("height asc, id asc")
	if typePrefix != "" {
		query = query.Where("type LIKE ?", typePrefix+"%")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []EventRecord
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func publicPuzzles(attrs map[string]string) string {
	for _, key := range publicAttributes {
		if v, ok := attrs[key]; ok {
			return v
		}
	}
	return ""
}
