package infra

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// counterRow is the persisted form of a counter snapshot.
type counterRow struct {
	ID                uint      `gorm:"primaryKey"`
	TakenAt           time.Time `gorm:"not null;index"`
	CurrentApp        string    `gorm:"not null"`
	DwellMs           int64     `gorm:"not null;default:0"`
	ScreenTimeMs      int64     `gorm:"not null;default:0"`
	SwitchCountWindow int       `gorm:"not null;default:0"`
	PerAppJSON        string    `gorm:"not null;default:'{}'"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (counterRow) TableName() string { return "counter_snapshots" }

// alertRow is the persisted lifecycle record of one alert.
type alertRow struct {
	ID          uint       `gorm:"primaryKey"`
	AlertID     string     `gorm:"not null;uniqueIndex"`
	AppName     string     `gorm:"not null;index"`
	Message     string     `gorm:"not null"`
	MediaRef    string     `gorm:"not null;default:''"`
	CreatedAt   time.Time  `gorm:"not null;index"`
	DismissedAt *time.Time `gorm:"index"`
}

func (alertRow) TableName() string { return "alerts" }

// GormHistoryStore implements domain.HistoryStore on SQLite via gorm.
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore opens (or creates) the history database and migrates
// the schema.
func NewGormHistoryStore(dbPath string) (*GormHistoryStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}

	if err := db.AutoMigrate(&counterRow{}, &alertRow{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate history schema")
	}

	return &GormHistoryStore{db: db}, nil
}

// SaveSnapshot records the tracker's counters.
func (s *GormHistoryStore) SaveSnapshot(snap domain.CounterSnapshot) error {
	perApp, err := json.Marshal(snap.PerAppMs)
	if err != nil {
		return errors.Wrap(err, "failed to encode per-app times")
	}

	row := counterRow{
		TakenAt:           snap.TakenAt,
		CurrentApp:        snap.CurrentApp,
		DwellMs:           snap.DwellMs,
		ScreenTimeMs:      snap.ScreenTimeMs,
		SwitchCountWindow: snap.SwitchCountWindow,
		PerAppJSON:        string(perApp),
	}
	if result := s.db.Create(&row); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert counter snapshot")
	}
	return nil
}

// RecordAlertShown records that an alert was raised.
func (s *GormHistoryStore) RecordAlertShown(alert domain.Alert) error {
	row := alertRow{
		AlertID:   alert.ID,
		AppName:   alert.AppName,
		Message:   alert.Message,
		MediaRef:  alert.MediaRef,
		CreatedAt: alert.CreatedAt,
	}
	if result := s.db.Create(&row); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert alert record")
	}
	return nil
}

// RecordAlertDismissed marks a previously recorded alert dismissed.
// Unknown alert IDs are not an error: the show row may have been dropped
// in degraded mode.
func (s *GormHistoryStore) RecordAlertDismissed(alertID string, at time.Time) error {
	result := s.db.Model(&alertRow{}).
		Where("alert_id = ? AND dismissed_at IS NULL", alertID).
		Update("dismissed_at", at)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update alert record")
	}
	return nil
}

// RecentAlerts returns the most recent alert rows, newest first.
// Used by the status command.
func (s *GormHistoryStore) RecentAlerts(limit int) ([]domain.Alert, error) {
	var rows []alertRow
	result := s.db.Order("created_at DESC").Limit(limit).Find(&rows)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query alerts")
	}

	alerts := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, domain.Alert{
			ID:          row.AlertID,
			AppName:     row.AppName,
			Message:     row.Message,
			MediaRef:    row.MediaRef,
			CreatedAt:   row.CreatedAt,
			DismissedAt: row.DismissedAt,
		})
	}
	return alerts, nil
}

// LatestSnapshot returns the most recent counter snapshot, or nil.
func (s *GormHistoryStore) LatestSnapshot() (*domain.CounterSnapshot, error) {
	var row counterRow
	result := s.db.Order("taken_at DESC").First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to query counter snapshot")
	}

	perApp := make(map[string]int64)
	_ = json.Unmarshal([]byte(row.PerAppJSON), &perApp)

	return &domain.CounterSnapshot{
		TakenAt:           row.TakenAt,
		CurrentApp:        row.CurrentApp,
		DwellMs:           row.DwellMs,
		ScreenTimeMs:      row.ScreenTimeMs,
		SwitchCountWindow: row.SwitchCountWindow,
		PerAppMs:          perApp,
	}, nil
}

// Close releases the underlying database connection.
func (s *GormHistoryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to access underlying database")
	}
	return sqlDB.Close()
}

// Ensure GormHistoryStore implements domain.HistoryStore.
var _ domain.HistoryStore = (*GormHistoryStore)(nil)
