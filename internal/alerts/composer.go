package alerts

import (
	"time"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

// LiveAlert is a currently true condition over production, purchasing,
// stock or quoting data. It is recomputed every refresh and never stored.
type LiveAlert struct {
	ID          string                 `json:"id"`
	TriggerType string                 `json:"trigger_type"`
	Module      string                 `json:"module"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    database.Priority      `json:"priority"`
	TargetRoles []string               `json:"target_roles"`
	Link        string                 `json:"link,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Dismissals reports whether a live alert id is currently hidden
type Dismissals interface {
	IsDismissed(id string) bool
}

// LiveTriggerOrder is the order live triggers are evaluated in
var LiveTriggerOrder = []string{
	TriggerProjectDelayed,
	TriggerProjectNotStarted,
	TriggerTasksBlocked,
	TriggerProjectNoMaterial,
	TriggerProjectNoDesign,
	TriggerUrgentPurchase,
	TriggerPendingPurchases,
	TriggerOrderDelayed,
	TriggerStockOut,
	TriggerStockLow,
	TriggerHighValueQuote,
}

// Compose evaluates every active live trigger against the snapshots and
// drops the alerts in dismissed. dismissed may be nil.
func Compose(resolver *Resolver, snaps *Snapshots, dismissed Dismissals, now time.Time) []LiveAlert {
	if snaps == nil {
		snaps = &Snapshots{}
	}

	var out []LiveAlert
	for _, triggerType := range LiveTriggerOrder {
		def, ok := resolver.Resolve(triggerType)
		if !ok || !def.Active {
			continue
		}
		evaluate := liveEvaluators[triggerType]
		for _, c := range evaluate(snaps, def.ThresholdDays, now) {
			id := LiveAlertID(triggerType, c.SubjectKey)
			if dismissed != nil && dismissed.IsDismissed(id) {
				continue
			}
			out = append(out, LiveAlert{
				ID:          id,
				TriggerType: triggerType,
				Module:      def.Module,
				Title:       c.Title,
				Description: c.Description,
				Priority:    def.Priority,
				TargetRoles: append([]string(nil), def.TargetRoles...),
				Link:        c.Link,
				Metadata:    c.Metadata,
			})
		}
	}
	return out
}
