package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrInstanceNotFound is returned when a lifecycle action targets an unknown instance
	ErrInstanceNotFound = errors.New("alert instance not found")
	// ErrInvalidTransition is returned when the instance is not in a state the action accepts
	ErrInvalidTransition = errors.New("invalid alert state transition")
	// ErrTriggerNotFound is returned when no trigger row exists for a type
	ErrTriggerNotFound = errors.New("alert trigger not found")
)

// maxResolvedHistory bounds how many resolved instances the feed carries.
// Pending and viewed instances are never capped.
const maxResolvedHistory = 500

// allowedFrom lists, per target state, the states an instance may leave
var allowedFrom = map[InstanceState][]InstanceState{
	StateViewed:    {StatePending},
	StateResolved:  {StatePending, StateViewed},
	StateDiscarded: {StatePending, StateViewed},
}

// AlertStore is the durable alert store backed by gorm
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a store on db
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// ListTriggerDefs returns every trigger row ordered by type
func (s *AlertStore) ListTriggerDefs(ctx context.Context) ([]AlertTrigger, error) {
	var triggers []AlertTrigger
	if err := s.db.WithContext(ctx).Order("trigger_type ASC").Find(&triggers).Error; err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	return triggers, nil
}

// ListActiveTriggerDefs returns the triggers with the active flag set
func (s *AlertStore) ListActiveTriggerDefs(ctx context.Context) ([]AlertTrigger, error) {
	var triggers []AlertTrigger
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("trigger_type ASC").
		Find(&triggers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active triggers: %w", err)
	}
	return triggers, nil
}

// GetTrigger returns the trigger row for triggerType
func (s *AlertStore) GetTrigger(ctx context.Context, triggerType string) (*AlertTrigger, error) {
	var trigger AlertTrigger
	err := s.db.WithContext(ctx).Where("trigger_type = ?", triggerType).First(&trigger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTriggerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trigger %s: %w", triggerType, err)
	}
	return &trigger, nil
}

// UpsertTrigger inserts or replaces a trigger row
func (s *AlertStore) UpsertTrigger(ctx context.Context, trigger *AlertTrigger) error {
	if err := s.db.WithContext(ctx).Save(trigger).Error; err != nil {
		return fmt.Errorf("failed to save trigger %s: %w", trigger.TriggerType, err)
	}
	return nil
}

// ListPendingInstances returns the non-terminal instances of one trigger type
func (s *AlertStore) ListPendingInstances(ctx context.Context, triggerType string) ([]AlertInstance, error) {
	var instances []AlertInstance
	err := s.db.WithContext(ctx).
		Where("trigger_type = ? AND state IN ?", triggerType, NonTerminalStates).
		Order("generated_at ASC").
		Find(&instances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending instances for %s: %w", triggerType, err)
	}
	return instances, nil
}

// InsertInstances creates rows in one transaction. Ids are assigned in place.
func (s *AlertStore) InsertInstances(ctx context.Context, rows []AlertInstance) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert alert instances: %w", err)
		}
		return nil
	})
}

// DeleteInstances removes non-terminal instances by id and returns how many
// rows went away. Resolved and discarded rows are history and never deleted.
func (s *AlertStore) DeleteInstances(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Where("id IN ? AND state IN ?", ids, NonTerminalStates).
		Delete(&AlertInstance{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete alert instances: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// UpdateInstanceState moves an instance through its lifecycle. The update is
// conditional on the current state, so a zero-row result means the action
// does not apply.
func (s *AlertStore) UpdateInstanceState(ctx context.Context, id string, state InstanceState, actor string, at time.Time) error {
	from, ok := allowedFrom[state]
	if !ok {
		return fmt.Errorf("%w: cannot move to %s", ErrInvalidTransition, state)
	}

	updates := map[string]interface{}{
		"state":      state,
		"updated_at": at,
	}
	if state.IsTerminal() {
		updates["resolved_by"] = actor
		updates["resolved_at"] = at
	}

	result := s.db.WithContext(ctx).
		Model(&AlertInstance{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert instance %s: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&AlertInstance{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check alert instance %s: %w", id, err)
	}
	if count == 0 {
		return ErrInstanceNotFound
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, id, state)
}

// GetInstance returns one instance by id
func (s *AlertStore) GetInstance(ctx context.Context, id string) (*AlertInstance, error) {
	var instance AlertInstance
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert instance %s: %w", id, err)
	}
	return &instance, nil
}

// ListAllNonDiscardedInstances returns every open instance plus the most
// recently resolved ones, newest first
func (s *AlertStore) ListAllNonDiscardedInstances(ctx context.Context) ([]AlertInstance, error) {
	var open []AlertInstance
	err := s.db.WithContext(ctx).
		Where("state IN ?", NonTerminalStates).
		Order("generated_at DESC").
		Find(&open).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open alert instances: %w", err)
	}

	var resolved []AlertInstance
	err = s.db.WithContext(ctx).
		Where("state = ?", StateResolved).
		Order("generated_at DESC").
		Limit(maxResolvedHistory).
		Find(&resolved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved alert instances: %w", err)
	}

	instances := append(open, resolved...)
	slices.SortStableFunc(instances, func(a, b AlertInstance) int {
		return b.GeneratedAt.Compare(a.GeneratedAt)
	})
	return instances, nil
}
