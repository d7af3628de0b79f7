package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// Counter is the slice of the store the aggregator reads
type Counter interface {
	CountUsers(ctx context.Context) (int, error)
	CountProjects(ctx context.Context) (int, error)
	CountTasks(ctx context.Context) (int, error)
}

// Snapshot is one set of document counts
type Snapshot struct {
	Users    int       `json:"users"`
	Projects int       `json:"projects"`
	Tasks    int       `json:"tasks"`
	TakenAt  time.Time `json:"takenAt"`
}

// Aggregator computes document totals and publishes them as gauges
type Aggregator struct {
	store   Counter
	metrics *observability.Metrics
	now     func() time.Time

	mu   sync.RWMutex
	last Snapshot
}

// NewAggregator creates a new aggregator. metrics may be nil.
func NewAggregator(store Counter, metrics *observability.Metrics) *Aggregator {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Aggregator{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// Refresh counts users, projects and tasks concurrently and updates the
// gauges. Gauges keep their previous values when any count fails.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Users, err = a.store.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Projects, err = a.store.CountProjects(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Tasks, err = a.store.CountTasks(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to aggregate totals: %w", err)
	}
	snap.TakenAt = a.now()

	a.metrics.UsersTotal.Set(float64(snap.Users))
	a.metrics.ProjectsTotal.Set(float64(snap.Projects))
	a.metrics.TasksTotal.Set(float64(snap.Tasks))

	a.mu.Lock()
	a.last = snap
	a.mu.Unlock()
	return snap, nil
}

// Last returns the most recent successful snapshot. TakenAt is zero before
// the first refresh.
func (a *Aggregator) Last() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}
