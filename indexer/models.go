package indexer

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is one committed contract event. Only public attributes are
// stored; winners, keys and keyphrases never reach the index.
type EventRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Height    uint64 `gorm:"index;not null"`
	TxHash    string `gorm:"size:66;index;not null"`
	Type      string `gorm:"size:64;index;not null"`
	Puzzles   string `gorm:"size:1024"`
	CreatedAt time.Time
}

func (EventRecord) TableName() string { return "puzzle_events" }

// AutoMigrate creates or updates the index schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
