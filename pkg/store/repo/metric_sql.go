package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/joripage/microbook/pkg/store/model"
)

type MetricSQLRepo struct {
	db *gorm.DB
}

func NewMetricSQLRepo(db *gorm.DB) *MetricSQLRepo {
	return &MetricSQLRepo{
		db: db,
	}
}

func (s *MetricSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *MetricSQLRepo) Create(ctx context.Context, record *model.MetricRecord) (*model.MetricRecord, error) {
	return record, r.dbWithContext(ctx).Create(record).Error
}

func (r *MetricSQLRepo) BulkCreate(ctx context.Context, records []*model.MetricRecord) ([]*model.MetricRecord, error) {
	return records, r.dbWithContext(ctx).Create(records).Error
}

func (r *MetricSQLRepo) ListBySymbol(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*model.MetricRecord, error) {
	var records []*model.MetricRecord
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
