package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BookEventType string

const (
	BookEventAdd    BookEventType = "add"
	BookEventModify BookEventType = "modify"
	BookEventCancel BookEventType = "cancel"
	BookEventTrade  BookEventType = "trade"
)

type BookEvent struct {
	EventID   string `gorm:"primaryKey"`
	Symbol    string
	OrderID   string
	EventType BookEventType
	Side      string
	Price     decimal.Decimal
	Qty       decimal.Decimal
	Timestamp time.Time
	CreatedAt time.Time
}

func (BookEvent) TableName() string {
	return "book_events"
}

func NewEventID(symbol, orderID string, typ BookEventType, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d", symbol, orderID, typ, ts.UnixNano())
}
