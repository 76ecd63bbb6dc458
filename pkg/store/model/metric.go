package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type MetricRecord struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	Symbol     string
	Timestamp  time.Time
	MidPrice   decimal.Decimal
	Spread     decimal.Decimal
	Imbalance  decimal.Decimal
	Impact     decimal.Decimal
	Volatility decimal.Decimal
	CreatedAt  time.Time
}

func (MetricRecord) TableName() string {
	return "market_metrics"
}
