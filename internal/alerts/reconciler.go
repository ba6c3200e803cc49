package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
)

// Store is the part of the durable alert store the reconciler writes to
type Store interface {
	ListPendingInstances(ctx context.Context, triggerType string) ([]database.AlertInstance, error)
	InsertInstances(ctx context.Context, rows []database.AlertInstance) error
	DeleteInstances(ctx context.Context, ids []string) (int, error)
}

// Delta is the outcome of one reconciliation pass
type Delta struct {
	Created int `json:"created"`
	Removed int `json:"removed"`
	// Failed lists trigger types whose writes failed; their counts are not included
	Failed []string `json:"failed,omitempty"`
	// New holds the instances created in this pass
	New []database.AlertInstance `json:"-"`
}

// Reconciler keeps stored instances in sync with current trigger conditions
type Reconciler struct {
	store Store
	now   func() time.Time
}

// NewReconciler creates a reconciler writing to store
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile evaluates each active persistent trigger over leads, inserts
// instances for newly firing subjects and deletes the ones that stopped
// firing. Trigger types are independent: a failed write is logged and only
// drops that type from the delta.
func (r *Reconciler) Reconcile(ctx context.Context, triggers []database.AlertTrigger, leads []database.Lead) (Delta, error) {
	now := r.now()

	var (
		mu    sync.Mutex
		delta Delta
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, trigger := range triggers {
		if !trigger.Active {
			continue
		}
		evaluate, ok := EvaluatorFor(trigger.TriggerType)
		if !ok {
			logger.Debug("no evaluator for trigger type", zap.String("trigger_type", trigger.TriggerType))
			continue
		}

		g.Go(func() error {
			results := evaluate(leads, trigger.ThresholdDays, now)
			created, removed, err := r.reconcileType(gctx, trigger, results, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("failed to reconcile trigger type",
					zap.String("trigger_type", trigger.TriggerType),
					zap.Error(err))
				delta.Failed = append(delta.Failed, trigger.TriggerType)
				return nil
			}
			delta.Created += len(created)
			delta.Removed += removed
			delta.New = append(delta.New, created...)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(delta.Failed)

	if err := ctx.Err(); err != nil {
		return delta, err
	}
	return delta, nil
}

// reconcileType applies the diff for one trigger type. It either completes
// every write or returns an error.
func (r *Reconciler) reconcileType(ctx context.Context, trigger database.AlertTrigger, results []TriggerResult, now time.Time) ([]database.AlertInstance, int, error) {
	existing, err := r.store.ListPendingInstances(ctx, trigger.TriggerType)
	if err != nil {
		return nil, 0, err
	}

	firing := make(map[string]TriggerResult, len(results))
	for _, res := range results {
		if _, dup := firing[res.SubjectID]; !dup {
			firing[res.SubjectID] = res
		}
	}

	held := make(map[string]bool, len(existing))
	var stale []string
	for _, inst := range existing {
		// a second non-terminal instance for a subject is surplus too
		if _, ok := firing[inst.SubjectID]; !ok || held[inst.SubjectID] {
			stale = append(stale, inst.ID)
			continue
		}
		held[inst.SubjectID] = true
	}

	var rows []database.AlertInstance
	for _, res := range results {
		if held[res.SubjectID] {
			continue
		}
		held[res.SubjectID] = true
		rows = append(rows, database.AlertInstance{
			TriggerType: trigger.TriggerType,
			SubjectID:   res.SubjectID,
			Title:       res.Title,
			Description: res.Description,
			Priority:    trigger.Priority,
			TargetRoles: append(database.StringList{}, trigger.TargetRoles...),
			State:       database.StatePending,
			GeneratedAt: now,
		})
	}

	if err := r.store.InsertInstances(ctx, rows); err != nil {
		return nil, 0, err
	}
	removed, err := r.store.DeleteInstances(ctx, stale)
	if err != nil {
		return nil, 0, err
	}

	if len(rows) > 0 || removed > 0 {
		logger.Info("reconciled trigger type",
			zap.String("trigger_type", trigger.TriggerType),
			zap.Int("created", len(rows)),
			zap.Int("removed", removed))
	}
	return rows, removed, nil
}
