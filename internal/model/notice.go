package model

import (
	"time"
)

// NoticeType represents the kind of lifecycle notice.
type NoticeType string

const (
	NoticeEventCreated  NoticeType = "created"
	NoticeEventsExpired NoticeType = "expired"
)

// Notice is published when events are created or swept away.
type Notice struct {
	ID        string     `json:"id"`
	Type      NoticeType `json:"type"`
	Event     *Event     `json:"event,omitempty"`
	Deleted   int64      `json:"deleted,omitempty"`
	Cutoff    *time.Time `json:"cutoff,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
