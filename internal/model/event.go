// Package model defines data structures for the hosting bot.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a hosted gathering. Rows are inserted once and never updated.
type Event struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HostID          int64           `gorm:"column:host_id;not null" json:"host_id"`
	HostDisplayName *string         `gorm:"column:host_display_name;size:64" json:"host_display_name,omitempty"`
	StartTime       time.Time       `gorm:"column:start_time;not null" json:"start_time"`
	EndTime         time.Time       `gorm:"column:end_time;not null;index" json:"end_time"`
	Cost            decimal.Decimal `gorm:"column:cost;type:numeric;not null" json:"cost"`
	Area            string          `gorm:"column:area;size:50;not null" json:"area"`
}

// TableName pins the table name used by the store.
func (Event) TableName() string {
	return "events"
}

// NewEvent holds the fields supplied when an event is created.
type NewEvent struct {
	HostID          int64
	HostDisplayName string
	StartTime       time.Time
	EndTime         time.Time
	Cost            decimal.Decimal
	Area            string
}

// Record converts the input into a storable row. An empty display name is
// stored as NULL.
func (n NewEvent) Record() Event {
	ev := Event{
		HostID:    n.HostID,
		StartTime: n.StartTime,
		EndTime:   n.EndTime,
		Cost:      n.Cost,
		Area:      n.Area,
	}
	if n.HostDisplayName != "" {
		name := n.HostDisplayName
		ev.HostDisplayName = &name
	}
	return ev
}
