package database

// Business records are read-only snapshots owned by the hosted backend.
// Field names follow the backend's JSON; dates stay as strings because the
// backend mixes date and timestamp formats and bad values must not fail a fetch.

// Lead is a CRM lead
type Lead struct {
	ID             string `json:"id"`
	Name           string `json:"nombre"`
	State          string `json:"estado"`
	Owner          string `json:"responsable"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	QuoteDate      string `json:"fecha_presupuesto"`
	QuoteState     string `json:"estado_presupuesto"`
	DeliveryDate   string `json:"fecha_entrega"`
	NextAction     string `json:"proxima_accion"`
	NextActionDate string `json:"fecha_proxima_accion"`
}

// Quote is a customer quote
type Quote struct {
	ID        string  `json:"id"`
	Number    string  `json:"numero"`
	Customer  string  `json:"cliente"`
	State     string  `json:"estado"`
	Total     float64 `json:"total"`
	LeadID    string  `json:"lead_id"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// ProductionProject is a vehicle build tracked on the production board
type ProductionProject struct {
	ID             string `json:"id"`
	Name           string `json:"nombre"`
	Customer       string `json:"cliente"`
	State          string `json:"estado"`
	StartDate      string `json:"fecha_inicio"`
	DueDate        string `json:"fecha_entrega"`
	MaterialsReady bool   `json:"materiales_listos"`
	DesignApproved bool   `json:"diseno_aprobado"`
}

// ProductionTask is a unit of work inside a production project
type ProductionTask struct {
	ID            string `json:"id"`
	ProjectID     string `json:"proyecto_id"`
	Title         string `json:"titulo"`
	State         string `json:"estado"`
	BlockedReason string `json:"motivo_bloqueo"`
}

// PurchaseItem is a material that has to be bought for a project
type PurchaseItem struct {
	ID           string `json:"id"`
	Material     string `json:"material"`
	ProjectID    string `json:"proyecto_id"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	OrderDate    string `json:"fecha_pedido"`
	LeadTimeDays int    `json:"dias_entrega"`
}

// StockItem is a warehouse line. The backend exposes the spreadsheet
// column names unchanged.
type StockItem struct {
	Code     string  `json:"CODIGO"`
	Name     string  `json:"NOMBRE"`
	Quantity float64 `json:"CANTIDAD"`
	Minimum  float64 `json:"STOCK_MINIMO"`
	Location string  `json:"UBICACION"`
}

// Lead states. Terminal states suppress inactivity and overdue evaluation.
const (
	LeadStateNew         = "Nuevo"
	LeadStateContacted   = "Contactado"
	LeadStateQuoted      = "Presupuesto enviado"
	LeadStateNegotiation = "Negociación"
	LeadStateWon         = "Ganado"
	LeadStateLost        = "Perdido"
	LeadStateDelivered   = "Entregado"
	LeadStateCancelled   = "Cancelado"
	LeadStateDiscarded   = "Descartado"
)

// Production project and task states
const (
	ProjectStatePending    = "PENDIENTE"
	ProjectStateInProgress = "EN_PROCESO"
	ProjectStateCompleted  = "COMPLETADO"
	ProjectStateDelivered  = "ENTREGADO"
	ProjectStateCancelled  = "CANCELADO"

	TaskStateBlocked = "BLOQUEADA"
)

// Purchase item statuses
const (
	PurchaseStatusPending  = "PENDING"
	PurchaseStatusOrdered  = "ORDERED"
	PurchaseStatusReceived = "RECEIVED"
)
