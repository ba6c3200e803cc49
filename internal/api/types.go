package api

import (
	"time"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

// ========== Alert Types ==========

// FeedResponse is the body of GET /api/alerts.
type FeedResponse struct {
	Alerts     []alerts.UnifiedAlert `json:"alerts"`
	Counts     alerts.Counts         `json:"counts"`
	Page       int                   `json:"page"`
	PerPage    int                   `json:"per_page"`
	Total      int                   `json:"total"`
	TotalPages int                   `json:"total_pages"`
}

// InstanceResponse is a persistent alert after a lifecycle action.
type InstanceResponse struct {
	ID          string                 `json:"id"`
	TriggerType string                 `json:"trigger_type"`
	SubjectID   string                 `json:"subject_id"`
	Title       string                 `json:"title"`
	State       database.InstanceState `json:"state"`
	ResolvedBy  string                 `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// RunResponse is the body of POST /api/alerts/run.
type RunResponse struct {
	Created int      `json:"created"`
	Removed int      `json:"removed"`
	Failed  []string `json:"failed,omitempty"`
}

// ========== Trigger Types ==========

// UpdateTriggerRequest is the request body for PUT /api/alert-triggers/{type}.
type UpdateTriggerRequest struct {
	Active        *bool    `json:"active"`
	ThresholdDays *int     `json:"threshold_days" validate:"omitempty,gte=0,lte=365"`
	Priority      *string  `json:"priority" validate:"omitempty,priority"`
	TargetRoles   []string `json:"target_roles" validate:"omitempty,dive,role"`
}

// TriggerResponse is one trigger definition.
type TriggerResponse struct {
	TriggerType   string            `json:"trigger_type"`
	Module        string            `json:"module"`
	Description   string            `json:"description"`
	Kind          alerts.Kind       `json:"kind"`
	Active        bool              `json:"active"`
	ThresholdDays int               `json:"threshold_days"`
	Priority      database.Priority `json:"priority"`
	TargetRoles   []string          `json:"target_roles"`
}

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expires_in"`
}
