// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package storage provides the GORM-backed durable saga store and an
// in-memory store for tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/innovationmech/sagaflow/pkg/saga"
)

// GormStore persists sagas and their event logs through GORM. It is the
// production Store; the schema is auto-migrated at construction.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a PostgreSQL connection with the given DSN and migrates
// the saga tables.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open saga database: %w", err)
	}
	return NewGormStoreWithDB(db)
}

// NewGormStoreWithDB wraps an existing GORM handle (any dialect) and migrates
// the saga tables. Used by tests with an in-memory SQLite handle.
func NewGormStoreWithDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&saga.Saga{}, &saga.SagaEvent{}); err != nil {
		return nil, fmt.Errorf("migrate saga tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveSaga inserts or updates a saga header row.
func (s *GormStore) SaveSaga(ctx context.Context, sg *saga.Saga) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "saga_id"}},
			UpdateAll: true,
		}).
		Create(sg).Error
}

// GetSaga loads a saga header by id.
func (s *GormStore) GetSaga(ctx context.Context, sagaID string) (*saga.Saga, error) {
	var sg saga.Saga
	err := s.db.WithContext(ctx).First(&sg, "saga_id = ?", sagaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", saga.ErrSagaNotFound, sagaID)
	}
	if err != nil {
		return nil, err
	}
	return &sg, nil
}

// UpdateSagaWithEvent updates the header and appends the event row in one
// transaction. The step number is assigned inside the transaction as the
// prior event count plus one; an event with the same outcome and state at the
// same position is treated as already recorded and skipped.
func (s *GormStore) UpdateSagaWithEvent(ctx context.Context, sg *saga.Saga, event *saga.SagaEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "saga_id"}},
			UpdateAll: true,
		}).Create(sg).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&saga.SagaEvent{}).
			Where("saga_id = ?", sg.ID).
			Count(&count).Error; err != nil {
			return err
		}

		var dup int64
		if err := tx.Model(&saga.SagaEvent{}).
			Where("saga_id = ? AND saga_event_outcome = ? AND saga_event_state = ? AND saga_step_number = ?",
				sg.ID, event.EventOutcome, event.EventState, count).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return nil
		}

		event.StepNumber = int(count) + 1
		return tx.Create(event).Error
	})
}

// GetSagaEvents loads all event rows for a saga ordered by step number.
func (s *GormStore) GetSagaEvents(ctx context.Context, sagaID string) ([]*saga.SagaEvent, error) {
	var events []*saga.SagaEvent
	err := s.db.WithContext(ctx).
		Where("saga_id = ?", sagaID).
		Order("saga_step_number ASC").
		Find(&events).Error
	return events, err
}

// FindByCorrelation returns sagas for a correlation id restricted to the
// given statuses.
func (s *GormStore) FindByCorrelation(ctx context.Context, correlationID string, statuses []saga.Status) ([]*saga.Saga, error) {
	var rows []*saga.Saga
	q := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("create_date ASC").Find(&rows).Error
	return rows, err
}

// FindStale returns sagas in the given statuses not updated since
// updatedBefore, oldest first, for the reconciliation scan.
func (s *GormStore) FindStale(ctx context.Context, statuses []saga.Status, updatedBefore time.Time) ([]*saga.Saga, error) {
	var rows []*saga.Saga
	err := s.db.WithContext(ctx).
		Where("status IN ? AND update_date < ?", statuses, updatedBefore).
		Order("update_date ASC").
		Find(&rows).Error
	return rows, err
}

// List returns a page of sagas matching the filter plus the unpaged total.
func (s *GormStore) List(ctx context.Context, filter *saga.Filter) ([]*saga.Saga, int64, error) {
	if filter == nil {
		filter = &saga.Filter{}
	}

	q := s.db.WithContext(ctx).Model(&saga.Saga{})
	if filter.SagaName != "" {
		q = q.Where("saga_name = ?", filter.SagaName)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.CorrelationID != "" {
		q = q.Where("correlation_id = ?", filter.CorrelationID)
	}
	if filter.CreatedAfter != nil {
		q = q.Where("create_date >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("create_date < ?", *filter.CreatedBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	sortBy := filter.SortBy
	if sortBy != "update_date" {
		sortBy = "create_date"
	}
	order := sortBy + " ASC"
	if filter.SortDesc {
		order = sortBy + " DESC"
	}

	var rows []*saga.Saga
	err := q.Order(order).Limit(limit).Offset(filter.Offset).Find(&rows).Error
	return rows, total, err
}

// PurgeOlderThan deletes sagas created before the cutoff together with their
// event logs, events first, in one transaction. Returns the number of deleted
// saga headers.
func (s *GormStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("saga_id IN (?)", tx.Model(&saga.Saga{}).Select("saga_id").Where("create_date < ?", cutoff)).
			Delete(&saga.SagaEvent{}).Error; err != nil {
			return err
		}

		res := tx.Where("create_date < ?", cutoff).Delete(&saga.Saga{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	return purged, err
}

// Close releases the underlying sql.DB pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
