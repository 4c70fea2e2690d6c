package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/models"
)

// Notifier surfaces user facing messages. Calls are fire and forget.
type Notifier interface {
	NotifySuccess(message string)
	NotifyError(message string)
	NotifyInfo(message string)
}

type nopNotifier struct{}

func (nopNotifier) NotifySuccess(string) {}
func (nopNotifier) NotifyError(string)   {}
func (nopNotifier) NotifyInfo(string)    {}

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) NotifySuccess(message string) {
	n.Logger.WithField("level", models.NotificationSuccess).Info(message)
}

func (n LogNotifier) NotifyError(message string) {
	n.Logger.WithField("level", models.NotificationError).Error(message)
}

func (n LogNotifier) NotifyInfo(message string) {
	n.Logger.WithField("level", models.NotificationInfo).Info(message)
}

// DBNotifier persists notifications so operators can list them later.
type DBNotifier struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewDBNotifier(db *gorm.DB, logger *logrus.Logger) *DBNotifier {
	return &DBNotifier{DB: db, Logger: logger}
}

func (n *DBNotifier) NotifySuccess(message string) { n.save(models.NotificationSuccess, message) }
func (n *DBNotifier) NotifyError(message string)   { n.save(models.NotificationError, message) }
func (n *DBNotifier) NotifyInfo(message string)    { n.save(models.NotificationInfo, message) }

func (n *DBNotifier) save(level, message string) {
	notif := models.Notification{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := n.DB.Create(&notif).Error; err != nil {
		n.Logger.WithError(err).Error("Failed to persist notification")
	}
}

// MultiNotifier fans a notification out to every notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifySuccess(message string) {
	for _, n := range m {
		n.NotifySuccess(message)
	}
}

func (m MultiNotifier) NotifyError(message string) {
	for _, n := range m {
		n.NotifyError(message)
	}
}

func (m MultiNotifier) NotifyInfo(message string) {
	for _, n := range m {
		n.NotifyInfo(message)
	}
}

// Notice is one recorded notification.
type Notice struct {
	Level   string
	Message string
}

// RecordingNotifier keeps notifications in memory; the CLI board and tests read them back.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *RecordingNotifier) NotifySuccess(message string) { r.add(models.NotificationSuccess, message) }
func (r *RecordingNotifier) NotifyError(message string)   { r.add(models.NotificationError, message) }
func (r *RecordingNotifier) NotifyInfo(message string)    { r.add(models.NotificationInfo, message) }

func (r *RecordingNotifier) add(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: message})
}

// Notices returns a copy of everything recorded so far.
func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Drain returns and forgets everything recorded so far.
func (r *RecordingNotifier) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Count returns how many notices of level were recorded.
func (r *RecordingNotifier) Count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Level == level {
			n++
		}
	}
	return n
}
