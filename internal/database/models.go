package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList is a list of strings stored as a JSON array in a text column
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if len(bytes) == 0 {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Contains reports whether v is in the list
func (s StringList) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// Priority is the urgency of an alert
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities for display: high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// InstanceState is the lifecycle state of a persistent alert instance
type InstanceState string

const (
	StatePending   InstanceState = "pending"
	StateViewed    InstanceState = "viewed"
	StateResolved  InstanceState = "resolved"
	StateDiscarded InstanceState = "discarded"
)

// NonTerminalStates are the states the reconciler owns
var NonTerminalStates = []InstanceState{StatePending, StateViewed}

// IsTerminal reports whether no further transition is possible
func (s InstanceState) IsTerminal() bool {
	return s == StateResolved || s == StateDiscarded
}

// AlertTrigger is an administrator-edited trigger definition.
// It has no identity beyond its trigger type key.
type AlertTrigger struct {
	TriggerType   string     `gorm:"primaryKey;size:64" json:"trigger_type"`
	Module        string     `gorm:"size:32;not null;default:'crm'" json:"module"`
	Description   string     `gorm:"type:text" json:"description"`
	Active        bool       `gorm:"not null" json:"active"`
	ThresholdDays int        `gorm:"not null;default:0" json:"threshold_days"`
	Priority      Priority   `gorm:"size:10;not null;default:'medium'" json:"priority"`
	TargetRoles   StringList `gorm:"type:text" json:"target_roles"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (AlertTrigger) TableName() string {
	return "alert_triggers"
}

// AlertInstance is a durable, actionable alert tied to one business record
type AlertInstance struct {
	ID          string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	TriggerType string        `gorm:"size:64;not null;index:idx_alert_instances_trigger_state" json:"trigger_type"`
	SubjectID   string        `gorm:"size:64;not null;index" json:"subject_id"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Priority    Priority      `gorm:"size:10;not null" json:"priority"`
	TargetRoles StringList    `gorm:"type:text" json:"target_roles"`
	State       InstanceState `gorm:"size:16;not null;index:idx_alert_instances_trigger_state" json:"state"`
	GeneratedAt time.Time     `gorm:"not null;index" json:"generated_at"`
	ResolvedBy  string        `gorm:"size:128" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (AlertInstance) TableName() string {
	return "alert_instances"
}

func (a *AlertInstance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// SnapshotEntry is the last-known-good copy of one business snapshot
type SnapshotEntry struct {
	Source    string    `gorm:"primaryKey;size:64" json:"source"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Records   int       `gorm:"not null;default:0" json:"records"`
	FetchedAt time.Time `gorm:"not null" json:"fetched_at"`
}

func (SnapshotEntry) TableName() string {
	return "snapshot_cache"
}
