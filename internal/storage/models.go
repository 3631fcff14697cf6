package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord is one delivered event alert, kept for auditing and export.
type AlertRecord struct {
	ID        int64
	Chain     string
	Stream    string
	EventID   string
	Price     decimal.Decimal
	Channel   string
	CreatedAt time.Time
}

// StateEntry is a raw row of the bot_state table.
type StateEntry struct {
	Key       string
	Value     string
	ExpiresAt *time.Time
}
