package alerts

import (
	"fmt"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/config"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

// Roles known to the workshop
const (
	RoleAdmin      = "admin"
	RoleSales      = "comercial"
	RoleForeman    = "encargado"
	RolePurchasing = "compras"
)

// PersistentTriggerDefaults are seeded into the trigger table on first boot
func PersistentTriggerDefaults() []database.AlertTrigger {
	sales := database.StringList{RoleSales}
	return []database.AlertTrigger{
		{TriggerType: TriggerQuoteUnanswered, Module: ModuleCRM, Active: true, ThresholdDays: 7, Priority: database.PriorityHigh, TargetRoles: sales,
			Description: "Presupuesto enviado sin aprobar ni rechazar tras N días"},
		{TriggerType: TriggerQualityFollowup, Module: ModuleCRM, Active: true, ThresholdDays: 15, Priority: database.PriorityMedium, TargetRoles: sales,
			Description: "Llamada de calidad entre N y 4N días después de la entrega"},
		{TriggerType: TriggerScheduledReview, Module: ModuleCRM, Active: true, ThresholdDays: 2, Priority: database.PriorityMedium, TargetRoles: sales,
			Description: "Próxima acción prevista en los próximos N días"},
		{TriggerType: TriggerLeadInactive, Module: ModuleCRM, Active: true, ThresholdDays: 14, Priority: database.PriorityLow, TargetRoles: sales,
			Description: "Lead abierto sin actividad durante N días"},
		{TriggerType: TriggerOverdueAction, Module: ModuleCRM, Active: true, ThresholdDays: 0, Priority: database.PriorityHigh, TargetRoles: sales,
			Description: "Próxima acción con fecha pasada"},
		{TriggerType: TriggerNegotiationFollowup, Module: ModuleCRM, Active: true, ThresholdDays: 30, Priority: database.PriorityMedium, TargetRoles: sales,
			Description: "Lead en negociación sin cambios durante N días"},
	}
}

// LiveTriggerDefaults are used when no row exists for a live trigger type.
// They are always active.
func LiveTriggerDefaults() []database.AlertTrigger {
	foreman := database.StringList{RoleForeman}
	purchasing := database.StringList{RolePurchasing}
	stock := database.StringList{RolePurchasing, RoleForeman}
	sales := database.StringList{RoleSales}
	return []database.AlertTrigger{
		{TriggerType: TriggerProjectDelayed, Module: ModuleProduction, Active: true, ThresholdDays: 0, Priority: database.PriorityHigh, TargetRoles: foreman,
			Description: "Proyecto abierto con más de N días de retraso sobre la entrega"},
		{TriggerType: TriggerProjectNotStarted, Module: ModuleProduction, Active: true, ThresholdDays: 3, Priority: database.PriorityMedium, TargetRoles: foreman,
			Description: "Proyecto pendiente N días después de su inicio previsto"},
		{TriggerType: TriggerTasksBlocked, Module: ModuleProduction, Active: true, Priority: database.PriorityHigh, TargetRoles: foreman,
			Description: "Tareas bloqueadas, agrupadas por proyecto"},
		{TriggerType: TriggerProjectNoMaterial, Module: ModuleProduction, Active: true, Priority: database.PriorityHigh, TargetRoles: database.StringList{RoleForeman, RolePurchasing},
			Description: "Proyecto en curso sin materiales listos"},
		{TriggerType: TriggerProjectNoDesign, Module: ModuleProduction, Active: true, Priority: database.PriorityMedium, TargetRoles: foreman,
			Description: "Proyecto en curso sin diseño aprobado"},
		{TriggerType: TriggerUrgentPurchase, Module: ModulePurchasing, Active: true, Priority: database.PriorityHigh, TargetRoles: purchasing,
			Description: "Compras pendientes con prioridad 6 o más"},
		{TriggerType: TriggerPendingPurchases, Module: ModulePurchasing, Active: true, ThresholdDays: 1, Priority: database.PriorityLow, TargetRoles: purchasing,
			Description: "Resumen de compras pendientes cuando hay al menos N"},
		{TriggerType: TriggerOrderDelayed, Module: ModulePurchasing, Active: true, ThresholdDays: 0, Priority: database.PriorityMedium, TargetRoles: purchasing,
			Description: "Pedido sin recibir N días después de su plazo de entrega"},
		{TriggerType: TriggerStockOut, Module: ModuleStock, Active: true, Priority: database.PriorityHigh, TargetRoles: stock,
			Description: "Artículos sin existencias"},
		{TriggerType: TriggerStockLow, Module: ModuleStock, Active: true, Priority: database.PriorityMedium, TargetRoles: stock,
			Description: "Artículos en o por debajo del stock mínimo"},
		{TriggerType: TriggerHighValueQuote, Module: ModuleQuotes, Active: true, ThresholdDays: 10, Priority: database.PriorityMedium, TargetRoles: sales,
			Description: "Presupuesto de alto importe sin cerrar tras N días"},
	}
}

// ApplyOverrides returns defaults with file overrides applied.
// An override naming an unknown trigger type is an error.
func ApplyOverrides(defaults []database.AlertTrigger, overrides []config.TriggerOverride) ([]database.AlertTrigger, error) {
	out := make([]database.AlertTrigger, len(defaults))
	copy(out, defaults)

	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.TriggerType] = i
	}

	for _, o := range overrides {
		i, ok := index[o.Type]
		if !ok {
			return nil, fmt.Errorf("override for unknown trigger type %q", o.Type)
		}
		def := &out[i]
		if o.Active != nil {
			def.Active = *o.Active
		}
		if o.ThresholdDays != nil {
			if *o.ThresholdDays < 0 {
				return nil, fmt.Errorf("trigger %s: threshold_days must not be negative", o.Type)
			}
			def.ThresholdDays = *o.ThresholdDays
		}
		if o.Priority != "" {
			p := database.Priority(o.Priority)
			if !p.Valid() {
				return nil, fmt.Errorf("trigger %s: invalid priority %q", o.Type, o.Priority)
			}
			def.Priority = p
		}
		if o.TargetRoles != nil {
			def.TargetRoles = append(database.StringList{}, o.TargetRoles...)
		}
	}
	return out, nil
}
