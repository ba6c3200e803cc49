package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "", 1, 50},
		{"explicit", "page=3&per_page=25", 3, 25},
		{"per_page capped", "per_page=500", 1, 200},
		{"zero page", "page=0", 1, 50},
		{"non-numeric page", "page=dos", 1, 50},
		{"negative per_page", "per_page=-5", 1, 50},
		{"module filter is ignored", "module=crm&page=2", 2, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/alerts?"+tt.query, nil)
			p := ParsePagination(r)

			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("ParsePagination() = %+v, want page %d per_page %d", p, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestPaginationParams_TotalPages(t *testing.T) {
	tests := []struct {
		perPage   int
		total     int64
		wantPages int
	}{
		{50, 0, 0},
		{50, 1, 1},
		{2, 5, 3},
		{5, 5, 1},
		{0, 10, 0},
	}

	for _, tt := range tests {
		p := PaginationParams{Page: 1, PerPage: tt.perPage}
		if got := p.TotalPages(tt.total); got != tt.wantPages {
			t.Errorf("TotalPages(%d) with per_page %d = %d, want %d", tt.total, tt.perPage, got, tt.wantPages)
		}
	}
}

// feedOf builds an admin feed of n pending instances followed by one live alert
func feedOf(n int) []alerts.UnifiedAlert {
	instances := make([]database.AlertInstance, 0, n)
	for i := 0; i < n; i++ {
		instances = append(instances, database.AlertInstance{
			ID:          fmt.Sprintf("inst-%d", i),
			TriggerType: alerts.TriggerLeadInactive,
			SubjectID:   fmt.Sprintf("L%d", i),
			Priority:    database.PriorityMedium,
			State:       database.StatePending,
		})
	}
	live := []alerts.LiveAlert{{
		ID:          alerts.LiveAlertID(alerts.TriggerStockOut, alerts.SummarySubject),
		TriggerType: alerts.TriggerStockOut,
		Module:      alerts.ModuleStock,
		Priority:    database.PriorityMedium,
	}}
	return alerts.Build(instances, live, alerts.RoleAdmin).Alerts
}

func TestPaginate_UnifiedFeed(t *testing.T) {
	items := feedOf(4)

	tests := []struct {
		name    string
		p       PaginationParams
		wantIDs []string
	}{
		{"first page", PaginationParams{Page: 1, PerPage: 2}, []string{"inst-0", "inst-1"}},
		{"last page carries the live alert", PaginationParams{Page: 3, PerPage: 2}, []string{"stock_agotado__resumen"}},
		{"past the end", PaginationParams{Page: 4, PerPage: 2}, nil},
		{"everything", PaginationParams{Page: 1, PerPage: 50}, []string{"inst-0", "inst-1", "inst-2", "inst-3", "stock_agotado__resumen"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(items, tt.p)
			if got == nil {
				t.Fatal("Paginate() returned nil, want an empty slice")
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Paginate() returned %d alerts, want %d", len(got), len(tt.wantIDs))
			}
			for i, a := range got {
				if a.AlertID() != tt.wantIDs[i] {
					t.Errorf("alert %d = %q, want %q", i, a.AlertID(), tt.wantIDs[i])
				}
			}
		})
	}
}

func TestPaginate_MixedKindsKeepTheirKind(t *testing.T) {
	page := Paginate(feedOf(1), PaginationParams{Page: 1, PerPage: 2})
	if len(page) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(page))
	}
	if page[0].Kind() != alerts.KindPersistent || page[1].Kind() != alerts.KindLive {
		t.Errorf("kinds = %s, %s", page[0].Kind(), page[1].Kind())
	}
}
