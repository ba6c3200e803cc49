package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/utils"
)

// Modules an alert can originate from
const (
	ModuleCRM        = "crm"
	ModuleProduction = "produccion"
	ModulePurchasing = "compras"
	ModuleStock      = "stock"
	ModuleQuotes     = "presupuestos"
)

// Ephemeral trigger types, recomputed every refresh and never stored
const (
	TriggerProjectDelayed    = "proyecto_retrasado"
	TriggerProjectNotStarted = "proyecto_sin_iniciar"
	TriggerTasksBlocked      = "tareas_bloqueadas"
	TriggerProjectNoMaterial = "proyecto_sin_material"
	TriggerProjectNoDesign   = "proyecto_sin_diseno"
	TriggerUrgentPurchase    = "compra_urgente"
	TriggerPendingPurchases  = "compras_pendientes"
	TriggerOrderDelayed      = "pedido_retrasado"
	TriggerStockOut          = "stock_agotado"
	TriggerStockLow          = "stock_bajo"
	TriggerHighValueQuote    = "presupuesto_alto_valor"
)

const (
	// SummarySubject is the subject key of aggregate alerts
	SummarySubject = "resumen"
	// UrgentPurchasePriority is the lowest purchase priority considered urgent
	UrgentPurchasePriority = 6
	// HighValueQuoteAmount is the quote total, in euros, worth chasing
	HighValueQuoteAmount = 10000.0
	// summaryNames is how many names an aggregate description lists
	summaryNames = 3
)

// Snapshots holds the non-CRM records the live evaluators read
type Snapshots struct {
	Quotes    []database.Quote
	Projects  []database.ProductionProject
	Tasks     []database.ProductionTask
	Purchases []database.PurchaseItem
	Stock     []database.StockItem
}

// condition is a currently true fact about one subject
type condition struct {
	SubjectKey  string
	Title       string
	Description string
	Link        string
	Metadata    map[string]interface{}
}

type liveEvaluator func(s *Snapshots, thresholdDays int, now time.Time) []condition

var liveEvaluators = map[string]liveEvaluator{
	TriggerProjectDelayed:    evaluateProjectDelayed,
	TriggerProjectNotStarted: evaluateProjectNotStarted,
	TriggerTasksBlocked:      evaluateTasksBlocked,
	TriggerProjectNoMaterial: evaluateProjectNoMaterial,
	TriggerProjectNoDesign:   evaluateProjectNoDesign,
	TriggerUrgentPurchase:    evaluateUrgentPurchases,
	TriggerPendingPurchases:  evaluatePendingPurchases,
	TriggerOrderDelayed:      evaluateOrderDelayed,
	TriggerStockOut:          evaluateStockOut,
	TriggerStockLow:          evaluateStockLow,
	TriggerHighValueQuote:    evaluateHighValueQuotes,
}

// IsLiveTrigger reports whether triggerType belongs to the live alert set
func IsLiveTrigger(triggerType string) bool {
	_, ok := liveEvaluators[triggerType]
	return ok
}

// LiveAlertID is the deterministic id of a live alert
func LiveAlertID(triggerType, subjectKey string) string {
	return triggerType + "__" + subjectKey
}

var closedProjectStates = map[string]bool{
	database.ProjectStateCompleted: true,
	database.ProjectStateDelivered: true,
	database.ProjectStateCancelled: true,
}

func projectOpen(p database.ProductionProject) bool {
	return !closedProjectStates[strings.ToUpper(strings.TrimSpace(p.State))]
}

func projectInProgress(p database.ProductionProject) bool {
	return strings.ToUpper(strings.TrimSpace(p.State)) == database.ProjectStateInProgress
}

func projectName(p database.ProductionProject) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "Proyecto " + p.ID
}

func projectLink(id string) string {
	return "/produccion?proyecto=" + id
}

func evaluateProjectDelayed(s *Snapshots, thresholdDays int, now time.Time) []condition {
	var out []condition
	for _, p := range s.Projects {
		if p.ID == "" || !projectOpen(p) {
			continue
		}
		due, ok := parseDate(p.DueDate, now.Location())
		if !ok {
			continue
		}
		late := calendarDays(due, now)
		if late <= 0 || late <= thresholdDays {
			continue
		}
		out = append(out, condition{
			SubjectKey:  p.ID,
			Title:       "Proyecto retrasado: " + projectName(p),
			Description: fmt.Sprintf("La entrega estaba prevista hace %s.", utils.FormatDays(late)),
			Link:        projectLink(p.ID),
			Metadata:    map[string]interface{}{"proyecto_id": p.ID, "cliente": p.Customer, "dias_retraso": late},
		})
	}
	return out
}

func evaluateProjectNotStarted(s *Snapshots, thresholdDays int, now time.Time) []condition {
	var out []condition
	for _, p := range s.Projects {
		if p.ID == "" || strings.ToUpper(strings.TrimSpace(p.State)) != database.ProjectStatePending {
			continue
		}
		start, ok := parseDate(p.StartDate, now.Location())
		if !ok {
			continue
		}
		late := calendarDays(start, now)
		if late <= 0 || late < thresholdDays {
			continue
		}
		out = append(out, condition{
			SubjectKey:  p.ID,
			Title:       "Proyecto sin iniciar: " + projectName(p),
			Description: fmt.Sprintf("Debía empezar hace %s y sigue pendiente.", utils.FormatDays(late)),
			Link:        projectLink(p.ID),
			Metadata:    map[string]interface{}{"proyecto_id": p.ID, "dias_retraso": late},
		})
	}
	return out
}

func evaluateTasksBlocked(s *Snapshots, _ int, _ time.Time) []condition {
	projects := make(map[string]database.ProductionProject, len(s.Projects))
	for _, p := range s.Projects {
		projects[p.ID] = p
	}

	var order []string
	blocked := make(map[string][]string)
	for _, t := range s.Tasks {
		if t.ProjectID == "" || strings.ToUpper(strings.TrimSpace(t.State)) != database.TaskStateBlocked {
			continue
		}
		if p, ok := projects[t.ProjectID]; ok && !projectOpen(p) {
			continue
		}
		if _, seen := blocked[t.ProjectID]; !seen {
			order = append(order, t.ProjectID)
		}
		label := strings.TrimSpace(t.Title)
		if label == "" {
			label = "Tarea " + t.ID
		}
		if reason := strings.TrimSpace(t.BlockedReason); reason != "" {
			label += " (" + reason + ")"
		}
		blocked[t.ProjectID] = append(blocked[t.ProjectID], label)
	}

	out := make([]condition, 0, len(order))
	for _, id := range order {
		tasks := blocked[id]
		name := "Proyecto " + id
		if p, ok := projects[id]; ok {
			name = projectName(p)
		}
		out = append(out, condition{
			SubjectKey:  id,
			Title:       fmt.Sprintf("%d %s en %s", len(tasks), plural(len(tasks), "tarea bloqueada", "tareas bloqueadas"), name),
			Description: utils.SummarizeNames(tasks, summaryNames),
			Link:        projectLink(id),
			Metadata:    map[string]interface{}{"proyecto_id": id, "tareas": len(tasks)},
		})
	}
	return out
}

func evaluateProjectNoMaterial(s *Snapshots, _ int, _ time.Time) []condition {
	var out []condition
	for _, p := range s.Projects {
		if p.ID == "" || !projectInProgress(p) || p.MaterialsReady {
			continue
		}
		out = append(out, condition{
			SubjectKey:  p.ID,
			Title:       "Proyecto sin material: " + projectName(p),
			Description: "El proyecto está en curso pero los materiales no están listos.",
			Link:        projectLink(p.ID),
			Metadata:    map[string]interface{}{"proyecto_id": p.ID},
		})
	}
	return out
}

func evaluateProjectNoDesign(s *Snapshots, _ int, _ time.Time) []condition {
	var out []condition
	for _, p := range s.Projects {
		if p.ID == "" || !projectInProgress(p) || p.DesignApproved {
			continue
		}
		out = append(out, condition{
			SubjectKey:  p.ID,
			Title:       "Proyecto sin diseño aprobado: " + projectName(p),
			Description: "El proyecto está en curso sin diseño aprobado por el cliente.",
			Link:        projectLink(p.ID),
			Metadata:    map[string]interface{}{"proyecto_id": p.ID},
		})
	}
	return out
}

func purchasePending(p database.PurchaseItem) bool {
	return strings.ToUpper(strings.TrimSpace(p.Status)) == database.PurchaseStatusPending
}

func purchaseName(p database.PurchaseItem) string {
	if m := strings.TrimSpace(p.Material); m != "" {
		return m
	}
	return "Compra " + p.ID
}

func evaluateUrgentPurchases(s *Snapshots, _ int, _ time.Time) []condition {
	var names []string
	for _, p := range s.Purchases {
		if purchasePending(p) && p.Priority >= UrgentPurchasePriority {
			names = append(names, purchaseName(p))
		}
	}
	if len(names) == 0 {
		return nil
	}
	return []condition{{
		SubjectKey:  SummarySubject,
		Title:       fmt.Sprintf("%d %s sin pedir", len(names), plural(len(names), "compra urgente", "compras urgentes")),
		Description: utils.SummarizeNames(names, summaryNames),
		Link:        "/compras?estado=PENDING",
		Metadata:    map[string]interface{}{"total": len(names)},
	}}
}

// evaluatePendingPurchases summarizes pending purchases that are not urgent;
// urgent ones already have their own alert.
func evaluatePendingPurchases(s *Snapshots, thresholdDays int, _ time.Time) []condition {
	var names []string
	for _, p := range s.Purchases {
		if purchasePending(p) && p.Priority < UrgentPurchasePriority {
			names = append(names, purchaseName(p))
		}
	}
	minCount := thresholdDays
	if minCount < 1 {
		minCount = 1
	}
	if len(names) < minCount {
		return nil
	}
	return []condition{{
		SubjectKey:  SummarySubject,
		Title:       fmt.Sprintf("%d %s de pedir", len(names), plural(len(names), "compra pendiente", "compras pendientes")),
		Description: utils.SummarizeNames(names, summaryNames),
		Link:        "/compras?estado=PENDING",
		Metadata:    map[string]interface{}{"total": len(names)},
	}}
}

func evaluateOrderDelayed(s *Snapshots, thresholdDays int, now time.Time) []condition {
	var out []condition
	for _, p := range s.Purchases {
		if p.ID == "" || strings.ToUpper(strings.TrimSpace(p.Status)) != database.PurchaseStatusOrdered || p.LeadTimeDays <= 0 {
			continue
		}
		ordered, ok := parseDate(p.OrderDate, now.Location())
		if !ok {
			continue
		}
		late := daysSince(ordered, now) - p.LeadTimeDays
		if late <= 0 || late <= thresholdDays {
			continue
		}
		out = append(out, condition{
			SubjectKey:  p.ID,
			Title:       "Pedido retrasado: " + purchaseName(p),
			Description: fmt.Sprintf("Debía llegar hace %s (plazo de %s).", utils.FormatDays(late), utils.FormatDays(p.LeadTimeDays)),
			Link:        "/compras?id=" + p.ID,
			Metadata:    map[string]interface{}{"compra_id": p.ID, "dias_retraso": late},
		})
	}
	return out
}

func stockName(i database.StockItem) string {
	if n := strings.TrimSpace(i.Name); n != "" {
		return n
	}
	return i.Code
}

// stockOut and stockLow are disjoint by construction
func stockOut(i database.StockItem) bool {
	return i.Quantity <= 0
}

func stockLow(i database.StockItem) bool {
	return i.Quantity > 0 && i.Minimum > 0 && i.Quantity <= i.Minimum
}

func evaluateStockOut(s *Snapshots, _ int, _ time.Time) []condition {
	var names []string
	for _, i := range s.Stock {
		if stockOut(i) {
			names = append(names, stockName(i))
		}
	}
	if len(names) == 0 {
		return nil
	}
	return []condition{{
		SubjectKey:  SummarySubject,
		Title:       fmt.Sprintf("%d %s sin stock", len(names), plural(len(names), "artículo", "artículos")),
		Description: utils.SummarizeNames(names, summaryNames),
		Link:        "/stock?filtro=agotado",
		Metadata:    map[string]interface{}{"total": len(names)},
	}}
}

func evaluateStockLow(s *Snapshots, _ int, _ time.Time) []condition {
	var names []string
	for _, i := range s.Stock {
		if stockLow(i) {
			names = append(names, stockName(i))
		}
	}
	if len(names) == 0 {
		return nil
	}
	return []condition{{
		SubjectKey:  SummarySubject,
		Title:       fmt.Sprintf("%d %s con stock bajo", len(names), plural(len(names), "artículo", "artículos")),
		Description: utils.SummarizeNames(names, summaryNames),
		Link:        "/stock?filtro=bajo",
		Metadata:    map[string]interface{}{"total": len(names)},
	}}
}

func evaluateHighValueQuotes(s *Snapshots, thresholdDays int, now time.Time) []condition {
	var out []condition
	for _, q := range s.Quotes {
		if q.ID == "" || q.Total < HighValueQuoteAmount || closedQuoteStates[normalizeState(q.State)] {
			continue
		}
		last, ok := firstDate(now.Location(), q.UpdatedAt, q.CreatedAt)
		if !ok {
			continue
		}
		idle := daysSince(last, now)
		if idle < thresholdDays {
			continue
		}
		label := strings.TrimSpace(q.Number)
		if label == "" {
			label = q.ID
		}
		out = append(out, condition{
			SubjectKey:  q.ID,
			Title:       fmt.Sprintf("Presupuesto %s de %s sin cerrar", label, utils.FormatEuros(q.Total)),
			Description: fmt.Sprintf("%s no ha respondido en %s.", customerOrUnknown(q.Customer), utils.FormatDays(idle)),
			Link:        "/presupuestos/" + q.ID,
			Metadata:    map[string]interface{}{"presupuesto_id": q.ID, "total": q.Total, "dias": idle},
		})
	}
	return out
}

func customerOrUnknown(c string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return "El cliente"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
