package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

const changeBatchSize = 100

// ChangeMonitor polls db_changes and publishes every unprocessed row, oldest first, to
// its sinks. A row is marked processed only after every sink accepted it.
type ChangeMonitor struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration

	sinks  []realtime.Publisher
	logger *logrus.Logger
	once   sync.Once
	wg     sync.WaitGroup
}

func NewChangeMonitor(db *gorm.DB, logger *logrus.Logger, sinks ...realtime.Publisher) *ChangeMonitor {
	return &ChangeMonitor{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 1 * time.Second,
		sinks:    sinks,
		logger:   logger,
	}
}

func (cm *ChangeMonitor) Start() {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := cm.CheckChanges(context.Background()); err != nil {
					cm.logger.WithError(err).Error("Error processing db changes")
				}
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	cm.once.Do(func() { close(cm.StopChan) })
	cm.wg.Wait()
}

// CheckChanges publishes one batch and returns how many rows were processed.
func (cm *ChangeMonitor) CheckChanges(ctx context.Context) (int, error) {
	var changes []models.DBChange
	if err := cm.DB.WithContext(ctx).
		Where("processed = ?", false).
		Order("changed_at ASC").
		Order("id ASC").
		Limit(changeBatchSize).
		Find(&changes).Error; err != nil {
		return 0, err
	}

	processed := 0
	for _, change := range changes {
		event, err := changeEvent(change)
		if err != nil {
			cm.logger.WithError(err).WithField("change_id", change.ID).Warn("Skipping undecodable change")
		} else if err := cm.publish(ctx, event); err != nil {
			// keep order: later rows wait for this one
			return processed, err
		}

		if err := cm.DB.WithContext(ctx).
			Model(&models.DBChange{}).
			Where("id = ?", change.ID).
			Update("processed", true).Error; err != nil {
			return processed, err
		}
		processed++

		cm.logger.WithFields(logrus.Fields{
			"collection": change.Collection,
			"event":      change.ActionType,
			"record_id":  change.RecordID,
		}).Debug("Change published")
	}
	return processed, nil
}

func (cm *ChangeMonitor) publish(ctx context.Context, event realtime.ChangeEvent) error {
	for _, sink := range cm.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func changeEvent(change models.DBChange) (realtime.ChangeEvent, error) {
	event := realtime.ChangeEvent{
		Type:       realtime.EventType(change.ActionType),
		Collection: change.Collection,
		RecordID:   change.RecordID,
		At:         change.ChangedAt,
	}
	var err error
	if event.Old, err = decodeSnapshot(change.OldRecord); err != nil {
		return event, err
	}
	if event.New, err = decodeSnapshot(change.NewRecord); err != nil {
		return event, err
	}
	return event, nil
}

func decodeSnapshot(raw *string) (map[string]any, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
