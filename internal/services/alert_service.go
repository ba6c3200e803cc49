package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/cache"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/snapshot"
)

// ErrUnknownTrigger is returned for a trigger type no evaluator handles
var ErrUnknownTrigger = errors.New("unknown trigger type")

// ErrInvalidTriggerUpdate is returned when an edit carries values a trigger cannot hold
var ErrInvalidTriggerUpdate = errors.New("invalid trigger update")

// Event types pushed to connected clients
const (
	EventAlertsRefreshed = "alerts_refreshed"
	EventAlertUpdated    = "alert_updated"
	EventTriggerUpdated  = "trigger_updated"
)

// AlertStore is the durable store the service reads and writes
type AlertStore interface {
	alerts.Store
	ListTriggerDefs(ctx context.Context) ([]database.AlertTrigger, error)
	ListActiveTriggerDefs(ctx context.Context) ([]database.AlertTrigger, error)
	GetTrigger(ctx context.Context, triggerType string) (*database.AlertTrigger, error)
	UpsertTrigger(ctx context.Context, trigger *database.AlertTrigger) error
	UpdateInstanceState(ctx context.Context, id string, state database.InstanceState, actor string, at time.Time) error
	GetInstance(ctx context.Context, id string) (*database.AlertInstance, error)
	ListAllNonDiscardedInstances(ctx context.Context) ([]database.AlertInstance, error)
}

// Notifier announces newly created persistent alerts
type Notifier interface {
	NotifyNew(ctx context.Context, instances []database.AlertInstance) error
}

// Publisher pushes events to connected clients
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Viewer is the authenticated user a feed is built for
type Viewer struct {
	Username string
	Role     string
}

// TriggerUpdate holds the editable fields of a trigger. Nil fields are kept.
type TriggerUpdate struct {
	Active        *bool
	ThresholdDays *int
	Priority      *database.Priority
	TargetRoles   []string
}

// AlertServiceOptions configures an AlertService
type AlertServiceOptions struct {
	TriggerCacheTTL time.Duration
	// LiveDefaults are the ephemeral trigger definitions used when no row exists
	LiveDefaults []database.AlertTrigger
	Notifier     Notifier
	Publisher    Publisher
	Now          func() time.Time
}

// AlertService runs the alert engine: persistent reconciliation, live
// composition, the unified feed and lifecycle actions
type AlertService struct {
	store        AlertStore
	sources      *snapshot.Sources
	reconciler   *alerts.Reconciler
	triggers     *cache.ReadThrough[[]database.AlertTrigger]
	liveDefaults []database.AlertTrigger
	dismissals   *alerts.DismissalRegistry
	notifier     Notifier
	publisher    Publisher
	runs         singleflight.Group
	now          func() time.Time
}

// NewAlertService creates a new AlertService
func NewAlertService(store AlertStore, sources *snapshot.Sources, opts AlertServiceOptions) *AlertService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.TriggerCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	liveDefaults := opts.LiveDefaults
	if liveDefaults == nil {
		liveDefaults = alerts.LiveTriggerDefaults()
	}

	s := &AlertService{
		store:        store,
		sources:      sources,
		reconciler:   alerts.NewReconciler(store).WithClock(now),
		liveDefaults: liveDefaults,
		dismissals:   alerts.NewDismissalRegistry(now),
		notifier:     opts.Notifier,
		publisher:    opts.Publisher,
		now:          now,
	}
	s.triggers = cache.NewReadThrough[[]database.AlertTrigger](ttl, store.ListTriggerDefs).WithClock(now)
	return s
}

// ========== Persistent alerts ==========

// RefreshPersistent reconciles stored instances with the current leads.
// A failed lead fetch aborts the pass.
func (s *AlertService) RefreshPersistent(ctx context.Context) (alerts.Delta, error) {
	leads, err := s.sources.Leads.Fetch(ctx)
	if err != nil {
		return alerts.Delta{}, fmt.Errorf("failed to fetch leads: %w", err)
	}

	triggers, err := s.store.ListActiveTriggerDefs(ctx)
	if err != nil {
		return alerts.Delta{}, err
	}

	delta, err := s.reconciler.Reconcile(ctx, triggers, leads)
	if err != nil {
		return delta, err
	}

	if len(delta.New) > 0 && s.notifier != nil {
		if err := s.notifier.NotifyNew(ctx, delta.New); err != nil {
			logger.Warn("failed to announce new alerts", zap.Int("count", len(delta.New)), zap.Error(err))
		}
	}
	s.publish(EventAlertsRefreshed, delta)
	return delta, nil
}

// Run performs one refresh. Concurrent callers, timer or manual, share the
// pass already in flight.
func (s *AlertService) Run(ctx context.Context) (alerts.Delta, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.runs.DoChan("refresh", func() (interface{}, error) {
		started := s.now()
		delta, err := s.RefreshPersistent(runCtx)
		if err != nil {
			return delta, err
		}
		logger.Info("alert refresh completed",
			zap.Int("created", delta.Created),
			zap.Int("removed", delta.Removed),
			zap.Strings("failed", delta.Failed),
			zap.Duration("took", s.now().Sub(started)))
		return delta, nil
	})

	select {
	case res := <-ch:
		delta, _ := res.Val.(alerts.Delta)
		return delta, res.Err
	case <-ctx.Done():
		return alerts.Delta{}, ctx.Err()
	}
}

// MarkViewed moves a pending instance to viewed
func (s *AlertService) MarkViewed(ctx context.Context, id, actor string) (*database.AlertInstance, error) {
	return s.transition(ctx, id, database.StateViewed, actor)
}

// Resolve closes an instance as handled
func (s *AlertService) Resolve(ctx context.Context, id, actor string) (*database.AlertInstance, error) {
	return s.transition(ctx, id, database.StateResolved, actor)
}

// Discard closes an instance as not relevant
func (s *AlertService) Discard(ctx context.Context, id, actor string) (*database.AlertInstance, error) {
	return s.transition(ctx, id, database.StateDiscarded, actor)
}

func (s *AlertService) transition(ctx context.Context, id string, state database.InstanceState, actor string) (*database.AlertInstance, error) {
	if err := s.store.UpdateInstanceState(ctx, id, state, actor, s.now()); err != nil {
		return nil, err
	}
	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("alert instance updated",
		zap.String("id", id),
		zap.String("state", string(state)),
		zap.String("actor", actor))
	s.publish(EventAlertUpdated, alerts.NewPersistentAlert(*inst))
	return inst, nil
}

// ========== Live alerts ==========

// LiveAlerts composes the current ephemeral alerts minus the ones viewer
// dismissed. Snapshots that cannot be fetched fall back to cached copies.
func (s *AlertService) LiveAlerts(ctx context.Context, viewer string) []alerts.LiveAlert {
	snaps := s.loadSnapshots(ctx)

	rows, err := s.triggers.Get(ctx)
	if err != nil {
		logger.Warn("failed to load trigger configuration, using defaults", zap.Error(err))
		rows = nil
	}
	resolver := alerts.NewResolver(rows, s.liveDefaults)
	return alerts.Compose(resolver, snaps, s.dismissals.For(viewer), s.now())
}

func (s *AlertService) loadSnapshots(ctx context.Context) *alerts.Snapshots {
	snaps := &alerts.Snapshots{}
	var g errgroup.Group
	g.Go(func() error {
		snaps.Quotes, _ = snapshot.Load(ctx, s.sources.Quotes)
		return nil
	})
	g.Go(func() error {
		snaps.Projects, _ = snapshot.Load(ctx, s.sources.Projects)
		return nil
	})
	g.Go(func() error {
		snaps.Tasks, _ = snapshot.Load(ctx, s.sources.Tasks)
		return nil
	})
	g.Go(func() error {
		snaps.Purchases, _ = snapshot.Load(ctx, s.sources.Purchases)
		return nil
	})
	g.Go(func() error {
		snaps.Stock, _ = snapshot.Load(ctx, s.sources.Stock)
		return nil
	})
	_ = g.Wait()
	return snaps
}

// Dismiss hides a live alert from viewer for 24 hours
func (s *AlertService) Dismiss(viewer, id string) {
	s.dismissals.For(viewer).Dismiss(id)
}

// Undismiss shows a dismissed live alert to viewer again
func (s *AlertService) Undismiss(viewer, id string) {
	s.dismissals.For(viewer).Undismiss(id)
}

// ========== Unified feed ==========

// Feed builds the unified feed of viewer
func (s *AlertService) Feed(ctx context.Context, viewer Viewer) (alerts.Feed, error) {
	instances, err := s.store.ListAllNonDiscardedInstances(ctx)
	if err != nil {
		return alerts.Feed{}, err
	}
	live := s.LiveAlerts(ctx, viewer.Username)
	return alerts.Build(instances, live, viewer.Role), nil
}

// Counts returns the badge counts of viewer
func (s *AlertService) Counts(ctx context.Context, viewer Viewer) (alerts.Counts, error) {
	feed, err := s.Feed(ctx, viewer)
	if err != nil {
		return alerts.Counts{}, err
	}
	return feed.Counts, nil
}

// ========== Trigger administration ==========

// ListTriggers returns the effective definition of every known trigger type,
// persistent types first
func (s *AlertService) ListTriggers(ctx context.Context) ([]database.AlertTrigger, error) {
	rows, err := s.store.ListTriggerDefs(ctx)
	if err != nil {
		return nil, err
	}
	defaults := append(alerts.PersistentTriggerDefaults(), s.liveDefaults...)
	resolver := alerts.NewResolver(rows, defaults)

	out := make([]database.AlertTrigger, 0, len(defaults))
	for _, def := range defaults {
		if t, ok := resolver.Resolve(def.TriggerType); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// UpdateTrigger applies update to triggerType and stores the result
func (s *AlertService) UpdateTrigger(ctx context.Context, triggerType string, update TriggerUpdate) (*database.AlertTrigger, error) {
	if !alerts.IsPersistentTrigger(triggerType) && !alerts.IsLiveTrigger(triggerType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, triggerType)
	}

	trigger, err := s.store.GetTrigger(ctx, triggerType)
	if errors.Is(err, database.ErrTriggerNotFound) {
		trigger, err = s.defaultTrigger(triggerType)
	}
	if err != nil {
		return nil, err
	}

	if update.Active != nil {
		trigger.Active = *update.Active
	}
	if update.ThresholdDays != nil {
		if *update.ThresholdDays < 0 {
			return nil, fmt.Errorf("%w: threshold_days must not be negative", ErrInvalidTriggerUpdate)
		}
		trigger.ThresholdDays = *update.ThresholdDays
	}
	if update.Priority != nil {
		if !update.Priority.Valid() {
			return nil, fmt.Errorf("%w: invalid priority %q", ErrInvalidTriggerUpdate, *update.Priority)
		}
		trigger.Priority = *update.Priority
	}
	if update.TargetRoles != nil {
		trigger.TargetRoles = append(database.StringList{}, update.TargetRoles...)
	}

	if err := s.store.UpsertTrigger(ctx, trigger); err != nil {
		return nil, err
	}
	s.triggers.Invalidate()

	logger.Info("alert trigger updated",
		zap.String("trigger_type", triggerType),
		zap.Bool("active", trigger.Active),
		zap.Int("threshold_days", trigger.ThresholdDays))
	s.publish(EventTriggerUpdated, trigger)
	return trigger, nil
}

func (s *AlertService) defaultTrigger(triggerType string) (*database.AlertTrigger, error) {
	for _, defs := range [][]database.AlertTrigger{alerts.PersistentTriggerDefaults(), s.liveDefaults} {
		for _, def := range defs {
			if def.TriggerType == triggerType {
				d := def
				return &d, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, triggerType)
}

func (s *AlertService) publish(eventType string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(eventType, payload)
	}
}
