package api

import (
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

// InstanceToResponse converts a stored alert instance to its API form.
func InstanceToResponse(inst database.AlertInstance) InstanceResponse {
	return InstanceResponse{
		ID:          inst.ID,
		TriggerType: inst.TriggerType,
		SubjectID:   inst.SubjectID,
		Title:       inst.Title,
		State:       inst.State,
		ResolvedBy:  inst.ResolvedBy,
		ResolvedAt:  inst.ResolvedAt,
		GeneratedAt: inst.GeneratedAt,
	}
}

// DeltaToRunResponse converts a reconciliation delta.
func DeltaToRunResponse(d alerts.Delta) RunResponse {
	return RunResponse{Created: d.Created, Removed: d.Removed, Failed: d.Failed}
}

// TriggerToResponse converts a trigger definition.
func TriggerToResponse(t database.AlertTrigger) TriggerResponse {
	kind := alerts.KindLive
	if alerts.IsPersistentTrigger(t.TriggerType) {
		kind = alerts.KindPersistent
	}
	roles := []string(t.TargetRoles)
	if roles == nil {
		roles = []string{}
	}
	return TriggerResponse{
		TriggerType:   t.TriggerType,
		Module:        t.Module,
		Description:   t.Description,
		Kind:          kind,
		Active:        t.Active,
		ThresholdDays: t.ThresholdDays,
		Priority:      t.Priority,
		TargetRoles:   roles,
	}
}

// TriggersToResponses converts a list of trigger definitions.
func TriggersToResponses(triggers []database.AlertTrigger) []TriggerResponse {
	items := make([]TriggerResponse, len(triggers))
	for i, t := range triggers {
		items[i] = TriggerToResponse(t)
	}
	return items
}
