package alerts

import "github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"

// Resolver finds the effective definition of a trigger type: the
// administrator's row when one exists, else the built-in default.
type Resolver struct {
	rows     map[string]database.AlertTrigger
	defaults map[string]database.AlertTrigger
}

// NewResolver creates a resolver over stored rows and fallback defaults
func NewResolver(rows, defaults []database.AlertTrigger) *Resolver {
	r := &Resolver{
		rows:     make(map[string]database.AlertTrigger, len(rows)),
		defaults: make(map[string]database.AlertTrigger, len(defaults)),
	}
	for _, row := range rows {
		r.rows[row.TriggerType] = row
	}
	for _, def := range defaults {
		r.defaults[def.TriggerType] = def
	}
	return r
}

// Resolve returns the definition of triggerType. The boolean is false when
// neither source knows the type. An inactive stored row still resolves;
// callers check Active.
func (r *Resolver) Resolve(triggerType string) (database.AlertTrigger, bool) {
	if row, ok := r.rows[triggerType]; ok {
		return row, true
	}
	def, ok := r.defaults[triggerType]
	return def, ok
}
