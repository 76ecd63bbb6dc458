package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/joripage/microbook/pkg/store/model"
)

type BookEventSQLRepo struct {
	db *gorm.DB
}

func NewBookEventSQLRepo(db *gorm.DB) *BookEventSQLRepo {
	return &BookEventSQLRepo{
		db: db,
	}
}

func (s *BookEventSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *BookEventSQLRepo) Create(ctx context.Context, record *model.BookEvent) (*model.BookEvent, error) {
	return record, r.dbWithContext(ctx).Create(record).Error
}

func (r *BookEventSQLRepo) BulkCreate(ctx context.Context, records []*model.BookEvent) ([]*model.BookEvent, error) {
	return records, r.dbWithContext(ctx).Create(records).Error
}

func (r *BookEventSQLRepo) ListBySymbol(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*model.BookEvent, error) {
	var records []*model.BookEvent
	q := r.dbWithContext(ctx).Where("symbol = ?", symbol)
	if !start.IsZero() {
		q = q.Where("timestamp >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("timestamp < ?", end)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("timestamp asc").Find(&records).Error
	return records, err
}
