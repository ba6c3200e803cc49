package alerts

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

// Kind tells the two alert variants apart
type Kind string

const (
	KindPersistent Kind = "persistent"
	KindLive       Kind = "live"
)

// UnifiedAlert is one entry of the feed. It is implemented only by
// PersistentAlert and LiveFeedAlert.
type UnifiedAlert interface {
	Kind() Kind
	AlertID() string
	AlertPriority() database.Priority
	AlertModule() string
	// Pending reports whether the alert counts towards the badge
	Pending() bool
	roles() []string
}

// PersistentAlert is a stored instance with a lifecycle
type PersistentAlert struct {
	ID          string                 `json:"id"`
	TriggerType string                 `json:"trigger_type"`
	SubjectID   string                 `json:"subject_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    database.Priority      `json:"priority"`
	TargetRoles []string               `json:"target_roles"`
	State       database.InstanceState `json:"state"`
	GeneratedAt time.Time              `json:"generated_at"`
	ResolvedBy  string                 `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
}

// NewPersistentAlert converts a stored instance
func NewPersistentAlert(inst database.AlertInstance) PersistentAlert {
	return PersistentAlert{
		ID:          inst.ID,
		TriggerType: inst.TriggerType,
		SubjectID:   inst.SubjectID,
		Title:       inst.Title,
		Description: inst.Description,
		Priority:    inst.Priority,
		TargetRoles: []string(inst.TargetRoles),
		State:       inst.State,
		GeneratedAt: inst.GeneratedAt,
		ResolvedBy:  inst.ResolvedBy,
		ResolvedAt:  inst.ResolvedAt,
	}
}

func (a PersistentAlert) Kind() Kind                       { return KindPersistent }
func (a PersistentAlert) AlertID() string                  { return a.ID }
func (a PersistentAlert) AlertPriority() database.Priority { return a.Priority }
func (a PersistentAlert) AlertModule() string              { return ModuleCRM }
func (a PersistentAlert) Pending() bool                    { return a.State == database.StatePending }
func (a PersistentAlert) roles() []string                  { return a.TargetRoles }

// MarshalJSON adds the kind discriminator
func (a PersistentAlert) MarshalJSON() ([]byte, error) {
	type fields PersistentAlert
	return json.Marshal(struct {
		Kind   Kind   `json:"kind"`
		Module string `json:"module"`
		fields
	}{KindPersistent, ModuleCRM, fields(a)})
}

// LiveFeedAlert is a live alert as shown in the feed. Live alerts have no
// lifecycle and always present as pending.
type LiveFeedAlert struct {
	LiveAlert
}

func (a LiveFeedAlert) Kind() Kind                       { return KindLive }
func (a LiveFeedAlert) AlertID() string                  { return a.ID }
func (a LiveFeedAlert) AlertPriority() database.Priority { return a.Priority }
func (a LiveFeedAlert) AlertModule() string              { return a.Module }
func (a LiveFeedAlert) Pending() bool                    { return true }
func (a LiveFeedAlert) roles() []string                  { return a.TargetRoles }

// MarshalJSON adds the kind discriminator and the synthetic state
func (a LiveFeedAlert) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  Kind                   `json:"kind"`
		State database.InstanceState `json:"state"`
		LiveAlert
	}{KindLive, database.StatePending, a.LiveAlert})
}

// Counts are the badge numbers of a feed
type Counts struct {
	Total    int            `json:"total"`
	ByModule map[string]int `json:"by_module"`
}

// Feed is the role-filtered, priority-ordered view of both alert kinds
type Feed struct {
	Alerts []UnifiedAlert `json:"alerts"`
	Counts Counts         `json:"counts"`
}

// Visible reports whether a viewer with role may see an alert for targetRoles
func Visible(role string, targetRoles []string) bool {
	if role == RoleAdmin || len(targetRoles) == 0 {
		return true
	}
	for _, r := range targetRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Build merges stored instances and live alerts into the feed of role.
// Discarded instances are dropped. Order is by priority, high first, and
// otherwise keeps the input order: instances before live alerts.
func Build(instances []database.AlertInstance, live []LiveAlert, role string) Feed {
	alerts := make([]UnifiedAlert, 0, len(instances)+len(live))
	for _, inst := range instances {
		if inst.State == database.StateDiscarded {
			continue
		}
		a := NewPersistentAlert(inst)
		if Visible(role, a.roles()) {
			alerts = append(alerts, a)
		}
	}
	for _, l := range live {
		a := LiveFeedAlert{LiveAlert: l}
		if Visible(role, a.roles()) {
			alerts = append(alerts, a)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].AlertPriority().Rank() < alerts[j].AlertPriority().Rank()
	})

	return Feed{Alerts: alerts, Counts: CountPending(alerts)}
}

// CountPending derives the badge counts of alerts
func CountPending(alerts []UnifiedAlert) Counts {
	counts := Counts{ByModule: make(map[string]int)}
	for _, a := range alerts {
		if !a.Pending() {
			continue
		}
		counts.Total++
		counts.ByModule[a.AlertModule()]++
	}
	return counts
}

// ForModule returns the alerts of one module; an empty module keeps all
func (f Feed) ForModule(module string) []UnifiedAlert {
	if module == "" {
		return f.Alerts
	}
	out := make([]UnifiedAlert, 0, len(f.Alerts))
	for _, a := range f.Alerts {
		if a.AlertModule() == module {
			out = append(out, a)
		}
	}
	return out
}
