package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedOrder is an order this process placed and has not yet seen cancelled.
// Stored so a restart keeps excluding its own orders from the ticker.
type TrackedOrder struct {
	OrderID   string          `gorm:"primaryKey"`
	Side      Side            `gorm:"type:text;not null"`
	Price     decimal.Decimal `gorm:"type:text;not null"`
	Volume    decimal.Decimal `gorm:"type:text;not null"`
	CreatedAt time.Time
}
