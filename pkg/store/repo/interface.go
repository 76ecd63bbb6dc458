package repo

import (
	"context"
	"time"

	"github.com/joripage/microbook/pkg/store/model"
)

type IMetric interface {
	Create(ctx context.Context, record *model.MetricRecord) (*model.MetricRecord, error)
	BulkCreate(ctx context.Context, records []*model.MetricRecord) ([]*model.MetricRecord, error)
	ListBySymbol(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*model.MetricRecord, error)
}

type IBookEvent interface {
	Create(ctx context.Context, record *model.BookEvent) (*model.BookEvent, error)
	BulkCreate(ctx context.Context, records []*model.BookEvent) ([]*model.BookEvent, error)
	ListBySymbol(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*model.BookEvent, error)
}
