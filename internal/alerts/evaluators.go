package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/utils"
)

// Persistent trigger types, evaluated over CRM leads
const (
	TriggerQuoteUnanswered     = "presupuesto_sin_respuesta"
	TriggerQualityFollowup     = "seguimiento_calidad"
	TriggerScheduledReview     = "revision_programada"
	TriggerLeadInactive        = "lead_inactivo"
	TriggerOverdueAction       = "accion_vencida"
	TriggerNegotiationFollowup = "seguimiento_negociacion"
)

// TriggerResult is one subject that currently satisfies a trigger
type TriggerResult struct {
	SubjectID   string
	Title       string
	Description string
}

// Evaluator computes the leads that currently satisfy a trigger.
// It must be pure: same input, same output.
type Evaluator func(leads []database.Lead, thresholdDays int, now time.Time) []TriggerResult

var persistentEvaluators = map[string]Evaluator{
	TriggerQuoteUnanswered:     evaluateQuoteUnanswered,
	TriggerQualityFollowup:     evaluateQualityFollowup,
	TriggerScheduledReview:     evaluateScheduledReview,
	TriggerLeadInactive:        evaluateLeadInactive,
	TriggerOverdueAction:       evaluateOverdueAction,
	TriggerNegotiationFollowup: evaluateNegotiationFollowup,
}

// EvaluatorFor returns the evaluator registered for a persistent trigger type
func EvaluatorFor(triggerType string) (Evaluator, bool) {
	e, ok := persistentEvaluators[triggerType]
	return e, ok
}

// IsPersistentTrigger reports whether triggerType is reconciled into stored instances
func IsPersistentTrigger(triggerType string) bool {
	_, ok := persistentEvaluators[triggerType]
	return ok
}

var terminalLeadStates = map[string]bool{
	normalizeState(database.LeadStateWon):       true,
	normalizeState(database.LeadStateLost):      true,
	normalizeState(database.LeadStateDelivered): true,
	normalizeState(database.LeadStateCancelled): true,
	normalizeState(database.LeadStateDiscarded): true,
}

// closedQuoteStates are answers to a quote
var closedQuoteStates = map[string]bool{
	"aprobado":  true,
	"aceptado":  true,
	"rechazado": true,
	"cancelado": true,
	"facturado": true,
}

// normalizeState lowercases and strips accents the CRM is inconsistent about
func normalizeState(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(s)
}

// IsTerminalLeadState reports whether a lead state ends the sales cycle
func IsTerminalLeadState(state string) bool {
	return terminalLeadStates[normalizeState(state)]
}

func leadName(l database.Lead) string {
	if name := strings.TrimSpace(l.Name); name != "" {
		return name
	}
	return "Lead " + l.ID
}

func evaluateQuoteUnanswered(leads []database.Lead, thresholdDays int, now time.Time) []TriggerResult {
	var results []TriggerResult
	for _, l := range leads {
		if l.ID == "" {
			continue
		}
		sent, ok := parseDate(l.QuoteDate, now.Location())
		if !ok || closedQuoteStates[normalizeState(l.QuoteState)] {
			continue
		}
		age := daysSince(sent, now)
		if age < thresholdDays {
			continue
		}
		results = append(results, TriggerResult{
			SubjectID:   l.ID,
			Title:       "Presupuesto sin respuesta: " + leadName(l),
			Description: fmt.Sprintf("El presupuesto enviado a %s lleva %s sin respuesta.", leadName(l), utils.FormatDays(age)),
		})
	}
	return results
}

func evaluateQualityFollowup(leads []database.Lead, thresholdDays int, now time.Time) []TriggerResult {
	var results []TriggerResult
	for _, l := range leads {
		if l.ID == "" || normalizeState(l.State) != normalizeState(database.LeadStateDelivered) {
			continue
		}
		delivered, ok := parseDate(l.DeliveryDate, now.Location())
		if !ok {
			continue
		}
		age := daysSince(delivered, now)
		// bounded so a delivered lead does not alert forever
		if age < thresholdDays || age > 4*thresholdDays {
			continue
		}
		results = append(results, TriggerResult{
			SubjectID:   l.ID,
			Title:       "Seguimiento de calidad: " + leadName(l),
			Description: fmt.Sprintf("Han pasado %s desde la entrega. Llama al cliente para revisar la instalación.", utils.FormatDays(age)),
		})
	}
	return results
}

func evaluateScheduledReview(leads []database.Lead, thresholdDays int, now time.Time) []TriggerResult {
	var results []TriggerResult
	for _, l := range leads {
		if l.ID == "" || IsTerminalLeadState(l.State) {
			continue
		}
		due, ok := parseDate(l.NextActionDate, now.Location())
		if !ok {
			continue
		}
		left := daysUntil(due, now)
		if left < 0 || left > thresholdDays {
			continue
		}
		when := "hoy"
		if left == 1 {
			when = "mañana"
		} else if left > 1 {
			when = "en " + utils.FormatDays(left)
		}
		results = append(results, TriggerResult{
			SubjectID:   l.ID,
			Title:       "Revisión programada: " + leadName(l),
			Description: fmt.Sprintf("%s %s.", actionLabel(l), when),
		})
	}
	return results
}

func evaluateLeadInactive(leads []database.Lead, thresholdDays int, now time.Time) []TriggerResult {
	var results []TriggerResult
	for _, l := range leads {
		if l.ID == "" || IsTerminalLeadState(l.State) {
			continue
		}
		last, ok := firstDate(now.Location(), l.UpdatedAt, l.CreatedAt)
		if !ok {
			continue
		}
		idle := daysSince(last, now)
		if idle < thresholdDays {
			continue
		}
		results = append(results, TriggerResult{
			SubjectID:   l.ID,
			Title:       "Lead inactivo: " + leadName(l),
			Description: fmt.Sprintf("Sin actividad desde hace %s.", utils.FormatDays(idle)),
		})
	}
	return results
}

func evaluateOverdueAction(leads []database.Lead, _ int, now time.Time) []TriggerResult {
	var results []TriggerResult
	for _, l := range leads {
		if l.ID == "" || IsTerminalLeadState(l.State) {
			continue
		}
		due, ok := parseDate(l.NextActionDate, now.Location())
		if !ok || daysUntil(due, now) >= 0 {
			continue
		}
		late := daysSince(due, now)
		results = append(results, TriggerResult{
			SubjectID:   l.ID,
			Title:       "Acción vencida: " + leadName(l),
			Description: fmt.Sprintf("%s venció hace %s.", actionLabel(l), utils.FormatDays(late)),
		})
	}
	return results
}

func evaluateNegotiationFollowup(leads []database.Lead, thresholdDays int, now time.Time) []TriggerResult {
	negotiation := normalizeState(database.LeadStateNegotiation)
	var results []TriggerResult
	for _, l := range leads {
		if l.ID == "" || normalizeState(l.State) != negotiation {
			continue
		}
		last, ok := firstDate(now.Location(), l.UpdatedAt, l.CreatedAt)
		if !ok {
			continue
		}
		idle := daysSince(last, now)
		if idle < thresholdDays {
			continue
		}
		results = append(results, TriggerResult{
			SubjectID:   l.ID,
			Title:       "Negociación estancada: " + leadName(l),
			Description: fmt.Sprintf("La negociación con %s no avanza desde hace %s.", leadName(l), utils.FormatDays(idle)),
		})
	}
	return results
}

func actionLabel(l database.Lead) string {
	if a := strings.TrimSpace(l.NextAction); a != "" {
		return "Próxima acción (" + a + ")"
	}
	return "Próxima acción"
}
