package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

// ========================================
// Alert Instance Builder
// ========================================

// AlertInstanceBuilder helps construct test persistent alert instances
type AlertInstanceBuilder struct {
	inst database.AlertInstance
}

// NewAlertInstanceBuilder creates a pending medium-priority instance
func NewAlertInstanceBuilder() *AlertInstanceBuilder {
	return &AlertInstanceBuilder{
		inst: database.AlertInstance{
			ID:          uuid.NewString(),
			TriggerType: "lead_inactivo",
			SubjectID:   "lead-1",
			Title:       "Test alert",
			Priority:    database.PriorityMedium,
			TargetRoles: database.StringList{"comercial"},
			State:       database.StatePending,
			GeneratedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}
}

// WithID sets the instance id
func (b *AlertInstanceBuilder) WithID(id string) *AlertInstanceBuilder {
	b.inst.ID = id
	return b
}

// WithTrigger sets the trigger type
func (b *AlertInstanceBuilder) WithTrigger(triggerType string) *AlertInstanceBuilder {
	b.inst.TriggerType = triggerType
	return b
}

// WithSubject sets the subject record id
func (b *AlertInstanceBuilder) WithSubject(subjectID string) *AlertInstanceBuilder {
	b.inst.SubjectID = subjectID
	return b
}

// WithTitle sets the title
func (b *AlertInstanceBuilder) WithTitle(title string) *AlertInstanceBuilder {
	b.inst.Title = title
	return b
}

// WithPriority sets the priority
func (b *AlertInstanceBuilder) WithPriority(p database.Priority) *AlertInstanceBuilder {
	b.inst.Priority = p
	return b
}

// WithRoles sets the target roles
func (b *AlertInstanceBuilder) WithRoles(roles ...string) *AlertInstanceBuilder {
	b.inst.TargetRoles = database.StringList(roles)
	return b
}

// WithState sets the lifecycle state
func (b *AlertInstanceBuilder) WithState(s database.InstanceState) *AlertInstanceBuilder {
	b.inst.State = s
	return b
}

// Build returns the constructed instance
func (b *AlertInstanceBuilder) Build() database.AlertInstance {
	return b.inst
}

// ========================================
// Alert Trigger Builder
// ========================================

// AlertTriggerBuilder helps construct test trigger definitions
type AlertTriggerBuilder struct {
	trigger database.AlertTrigger
}

// NewAlertTriggerBuilder creates an active CRM trigger of triggerType
func NewAlertTriggerBuilder(triggerType string) *AlertTriggerBuilder {
	return &AlertTriggerBuilder{
		trigger: database.AlertTrigger{
			TriggerType:   triggerType,
			Module:        "crm",
			Active:        true,
			ThresholdDays: 7,
			Priority:      database.PriorityMedium,
			TargetRoles:   database.StringList{"comercial"},
		},
	}
}

// WithModule sets the module
func (b *AlertTriggerBuilder) WithModule(module string) *AlertTriggerBuilder {
	b.trigger.Module = module
	return b
}

// WithThreshold sets the threshold in days
func (b *AlertTriggerBuilder) WithThreshold(days int) *AlertTriggerBuilder {
	b.trigger.ThresholdDays = days
	return b
}

// WithPriority sets the priority
func (b *AlertTriggerBuilder) WithPriority(p database.Priority) *AlertTriggerBuilder {
	b.trigger.Priority = p
	return b
}

// WithRoles sets the target roles
func (b *AlertTriggerBuilder) WithRoles(roles ...string) *AlertTriggerBuilder {
	b.trigger.TargetRoles = database.StringList(roles)
	return b
}

// Inactive marks the trigger inactive
func (b *AlertTriggerBuilder) Inactive() *AlertTriggerBuilder {
	b.trigger.Active = false
	return b
}

// Build returns the constructed trigger
func (b *AlertTriggerBuilder) Build() database.AlertTrigger {
	return b.trigger
}

// ========================================
// Lead Builder
// ========================================

// LeadBuilder helps construct test CRM leads
type LeadBuilder struct {
	lead database.Lead
}

// NewLeadBuilder creates a lead in the "Nuevo" state
func NewLeadBuilder(id string) *LeadBuilder {
	return &LeadBuilder{
		lead: database.Lead{
			ID:        id,
			Name:      "Cliente " + id,
			State:     "Nuevo",
			CreatedAt: "2025-01-01",
		},
	}
}

// WithName sets the lead name
func (b *LeadBuilder) WithName(name string) *LeadBuilder {
	b.lead.Name = name
	return b
}

// WithState sets the pipeline state
func (b *LeadBuilder) WithState(state string) *LeadBuilder {
	b.lead.State = state
	return b
}

// WithUpdatedAt sets the last update date
func (b *LeadBuilder) WithUpdatedAt(date string) *LeadBuilder {
	b.lead.UpdatedAt = date
	return b
}

// WithQuote sets the quote date and state
func (b *LeadBuilder) WithQuote(date, state string) *LeadBuilder {
	b.lead.QuoteDate = date
	b.lead.QuoteState = state
	return b
}

// WithDelivery sets the delivery date
func (b *LeadBuilder) WithDelivery(date string) *LeadBuilder {
	b.lead.DeliveryDate = date
	return b
}

// WithNextAction sets the next scheduled action
func (b *LeadBuilder) WithNextAction(action, date string) *LeadBuilder {
	b.lead.NextAction = action
	b.lead.NextActionDate = date
	return b
}

// Build returns the constructed lead
func (b *LeadBuilder) Build() database.Lead {
	return b.lead
}
