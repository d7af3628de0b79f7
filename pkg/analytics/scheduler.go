package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// DefaultSchedule refreshes the gauges once a minute
const DefaultSchedule = "@every 1m"

// refreshTimeout bounds a single scheduled refresh
const refreshTimeout = 30 * time.Second

// Scheduler runs the aggregator on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	aggregator *Aggregator
	logger     *observability.Logger
	schedule   string
}

// NewScheduler validates schedule and registers the refresh job. An empty
// schedule means DefaultSchedule.
func NewScheduler(aggregator *Aggregator, schedule string, logger *observability.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Scheduler{
		cron:       cron.New(),
		aggregator: aggregator,
		logger:     logger.WithField("component", "analytics"),
		schedule:   schedule,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid analytics schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	snap, err := s.aggregator.Refresh(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Analytics refresh failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"users":    snap.Users,
		"projects": snap.Projects,
		"tasks":    snap.Tasks,
	}).Debug("Analytics refreshed")
}

// Start refreshes once immediately so the gauges are populated at boot, then
// starts the cron loop
func (s *Scheduler) Start() {
	s.run()
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Analytics scheduler started")
}

// Stop halts the schedule and waits for a running refresh, or for ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
