package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/middleware"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/services"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/testhelpers"
)

var _ services.Publisher = (*AlertsWSHandler)(nil)

// newWSServer serves the hub. When authenticate is set every request runs
// as a user whose role comes from the role query parameter, comercial by default.
func newWSServer(t *testing.T, h *AlertsWSHandler, authenticate bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	var handler http.Handler = mux
	if authenticate {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := r.URL.Query().Get("role")
			if role == "" {
				role = alerts.RoleSales
			}
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, middleware.User{Username: role + "-user", Role: role})
			mux.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
}

func dialAs(t *testing.T, srv *httptest.Server, role string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?role="+role, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", role, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func nextEventType(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var event AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	return event.Type
}

func TestAlertsWSHandler_AlertUpdatesFollowTargetRoles(t *testing.T) {
	h := NewAlertsWSHandler(func(*http.Request) bool { return true })
	srv := newWSServer(t, h, true)

	sales := dialAs(t, srv, alerts.RoleSales)
	foreman := dialAs(t, srv, alerts.RoleForeman)
	admin := dialAs(t, srv, alerts.RoleAdmin)
	testhelpers.Eventually(t, 2*time.Second, func() bool { return h.ClientCount() == 3 })

	h.Publish(services.EventAlertUpdated, alerts.PersistentAlert{
		ID:          testInstanceID,
		Title:       "Negociación estancada: Marta Gil",
		TargetRoles: []string{alerts.RoleSales},
	})
	h.Publish(services.EventAlertsRefreshed, alerts.Delta{Created: 1})

	if got := nextEventType(t, sales); got != services.EventAlertUpdated {
		t.Errorf("sales got %q, want %q", got, services.EventAlertUpdated)
	}
	if got := nextEventType(t, admin); got != services.EventAlertUpdated {
		t.Errorf("admin got %q, want %q", got, services.EventAlertUpdated)
	}
	if got := nextEventType(t, foreman); got != services.EventAlertsRefreshed {
		t.Errorf("foreman got %q, the sales-only alert must not reach it", got)
	}
}

func TestAlertsWSHandler_TriggerUpdatesReachAdminsOnly(t *testing.T) {
	h := NewAlertsWSHandler(func(*http.Request) bool { return true })
	srv := newWSServer(t, h, true)

	sales := dialAs(t, srv, alerts.RoleSales)
	admin := dialAs(t, srv, alerts.RoleAdmin)
	testhelpers.Eventually(t, 2*time.Second, func() bool { return h.ClientCount() == 2 })

	trigger := testhelpers.NewAlertTriggerBuilder("lead_inactivo").Build()
	h.Publish(services.EventTriggerUpdated, &trigger)
	h.Publish(services.EventAlertsRefreshed, alerts.Delta{})

	if got := nextEventType(t, admin); got != services.EventTriggerUpdated {
		t.Errorf("admin got %q, want %q", got, services.EventTriggerUpdated)
	}
	if got := nextEventType(t, sales); got != services.EventAlertsRefreshed {
		t.Errorf("sales got %q, trigger configuration must not reach it", got)
	}
}

func TestAlertsWSHandler_PublishReachesClient(t *testing.T) {
	h := NewAlertsWSHandler(func(*http.Request) bool { return true })
	srv := newWSServer(t, h, true)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	testhelpers.Eventually(t, 2*time.Second, func() bool { return h.ClientCount() == 1 })

	h.Publish(services.EventAlertsRefreshed, map[string]int{"created": 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var event struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if event.Type != services.EventAlertsRefreshed || event.Data["created"] != 2 {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestAlertsWSHandler_ClientRemovedOnClose(t *testing.T) {
	h := NewAlertsWSHandler(func(*http.Request) bool { return true })
	srv := newWSServer(t, h, true)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	testhelpers.Eventually(t, 2*time.Second, func() bool { return h.ClientCount() == 1 })

	conn.Close()
	testhelpers.Eventually(t, 2*time.Second, func() bool { return h.ClientCount() == 0 })

	// publishing with no clients is a no-op
	h.Publish(services.EventAlertUpdated, nil)
}

func TestAlertsWSHandler_RequiresUser(t *testing.T) {
	h := NewAlertsWSHandler(func(*http.Request) bool { return true })
	srv := newWSServer(t, h, false)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		t.Fatal("expected dial to fail without a user")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 response, got %v", resp)
	}
}

func TestAlertsWSHandler_Close(t *testing.T) {
	h := NewAlertsWSHandler(func(*http.Request) bool { return true })
	srv := newWSServer(t, h, true)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	testhelpers.Eventually(t, 2*time.Second, func() bool { return h.ClientCount() == 1 })

	h.Close()
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close", h.ClientCount())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}
