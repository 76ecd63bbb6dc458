package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	Metric() IMetric
	BookEvent() IBookEvent
}

type Repo struct {
	metricsDB *gorm.DB
}

func NewRepo(metricsDB *gorm.DB) IRepo {
	return &Repo{
		metricsDB: metricsDB,
	}
}

func (r *Repo) Metric() IMetric {
	return NewMetricSQLRepo(r.metricsDB)
}

func (r *Repo) BookEvent() IBookEvent {
	return NewBookEventSQLRepo(r.metricsDB)
}
