// Package reminder runs the periodic watering check.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/watering"
)

// DefaultInterval is the time between checks.
const DefaultInterval = time.Minute

// Source supplies the plant count and the reminders due now.
type Source interface {
	Watch() (<-chan int, func())
	DueReminders() []watering.Reminder
	Now() time.Time
}

// Publisher delivers a batch of reminders to connected clients.
type Publisher interface {
	PublishReminders(reminders []watering.Reminder)
}

// Recorder keeps a log of emitted reminders.
type Recorder interface {
	RecordReminders(reminders []watering.Reminder, at time.Time) error
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithInterval sets how often plants are checked.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPublisher sets where reminder batches are published.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithRecorder sets where reminder batches are recorded.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler checks the plant collection on a fixed interval. Its ticker
// exists only while the collection is non-empty.
type Scheduler struct {
	source    Source
	publisher Publisher
	recorder  Recorder
	metrics   *metrics.Metrics
	interval  time.Duration
}

// New creates a scheduler reading from source.
func New(source Source, opts ...Option) *Scheduler {
	s := &Scheduler{source: source, interval: DefaultInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	counts, unsubscribe := s.source.Watch()
	defer unsubscribe()

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stop()

	slog.Info("reminder scheduler started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return nil
		case n := <-counts:
			switch {
			case n > 0 && ticker == nil:
				ticker = time.NewTicker(s.interval)
				tick = ticker.C
				slog.Debug("reminder ticker armed", slog.Int("plants", n))
			case n == 0 && ticker != nil:
				stop()
				slog.Debug("reminder ticker disarmed")
			}
		case <-tick:
			s.Check()
		}
	}
}

// Check evaluates every plant once and delivers a non-empty batch.
func (s *Scheduler) Check() []watering.Reminder {
	due := s.source.DueReminders()
	s.metrics.ReminderCheck(len(due))
	if len(due) == 0 {
		return due
	}

	for _, r := range due {
		slog.Info("watering reminder", slog.String("plant", r.PlantName), slog.String("message", r.Message))
	}
	if s.publisher != nil {
		s.publisher.PublishReminders(due)
	}
	if s.recorder != nil {
		if err := s.recorder.RecordReminders(due, s.source.Now()); err != nil {
			slog.Warn("failed to record reminders", slog.String("error", err.Error()))
		}
	}
	return due
}
