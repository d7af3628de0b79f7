package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

const (
	// DefaultPageSize is the number of entries returned when no limit is given
	DefaultPageSize = 50
	// MaxPageSize caps a single activity page
	MaxPageSize = 50
)

// Entry is an activity to record. ID and timestamp are assigned by the Recorder.
type Entry struct {
	UserID    string
	Action    string
	TaskID    string
	ProjectID string
}

// Recorder appends activity entries after successful mutations and reads a
// caller's own history back.
type Recorder struct {
	store   storage.ActivityStore
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRecorder creates a recorder over store. metrics may be nil.
func NewRecorder(store storage.ActivityStore, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// Record appends entry synchronously. A failure is logged and counted but
// never returned: the mutation that triggered it has already happened.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	record := &storage.ActivityEntry{
		ID:        uuid.NewString(),
		UserID:    entry.UserID,
		Action:    entry.Action,
		TaskID:    entry.TaskID,
		ProjectID: entry.ProjectID,
		Timestamp: r.now().UTC(),
	}

	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"activity_id": record.ID,
		"action":      record.Action,
	})

	if err := r.store.AppendActivity(ctx, record); err != nil {
		logger.WithError(err).Error("Failed to record activity")
		if r.metrics != nil {
			r.metrics.ActivityWriteFailuresTotal.Inc()
		}
		return
	}
	logger.Debug("Activity recorded")
}

// List returns the caller's own entries, newest first. limit is clamped to
// [1, MaxPageSize]; zero or negative means DefaultPageSize.
func (r *Recorder) List(ctx context.Context, identity auth.Identity, limit int) ([]*storage.ActivityEntry, error) {
	entries, err := r.store.ListActivity(ctx, identity.ID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}

// ClampLimit normalizes a requested page size
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
