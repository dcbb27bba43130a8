package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	LogInfo  = "info"
	LogWarn  = "warn"
	LogError = "error"
)

// SystemLogEntry is the audit-trail record written for every state change.
type SystemLogEntry struct {
	ID      uuid.UUID `json:"id"`
	TS      time.Time `json:"ts"`
	Level   string    `json:"lvl"`
	Source  string    `json:"src"`
	Message string    `json:"msg"`
}
