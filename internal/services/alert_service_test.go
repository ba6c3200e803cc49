package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/alerts"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/snapshot"
)

var serviceNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

// fakeBackend serves fixed payloads per table
type fakeBackend struct {
	mu      sync.Mutex
	tables  map[string]string
	failing map[string]bool
	calls   map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tables:  make(map[string]string),
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (b *fakeBackend) set(table, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables[table] = payload
}

func (b *fakeBackend) fail(table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[table] = true
}

func (b *fakeBackend) FetchTable(ctx context.Context, table string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[table]++
	if b.failing[table] {
		return nil, fmt.Errorf("backend unavailable for %s", table)
	}
	payload, ok := b.tables[table]
	if !ok {
		payload = "[]"
	}
	return []byte(payload), nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	received []database.AlertInstance
}

func (n *recordingNotifier) NotifyNew(ctx context.Context, instances []database.AlertInstance) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, instances...)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&database.AlertTrigger{}, &database.AlertInstance{}, &database.SnapshotEntry{}))
	return db
}

type serviceFixture struct {
	svc       *AlertService
	store     *database.AlertStore
	backend   *fakeBackend
	notifier  *recordingNotifier
	publisher *recordingPublisher
	now       *time.Time
}

func newServiceFixture(t *testing.T, triggers ...database.AlertTrigger) *serviceFixture {
	t.Helper()
	db := setupTestDB(t)
	store := database.NewAlertStore(db)
	require.NoError(t, database.InitializeDefaults(db, triggers))

	backend := newFakeBackend()
	now := serviceNow
	f := &serviceFixture{
		store:     store,
		backend:   backend,
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		now:       &now,
	}
	f.svc = NewAlertService(store, snapshot.NewSources(backend, database.NewSnapshotCache(db)), AlertServiceOptions{
		TriggerCacheTTL: time.Minute,
		Notifier:        f.notifier,
		Publisher:       f.publisher,
		Now:             func() time.Time { return *f.now },
	})
	return f
}

func negotiationTrigger() database.AlertTrigger {
	for _, def := range alerts.PersistentTriggerDefaults() {
		if def.TriggerType == alerts.TriggerNegotiationFollowup {
			return def
		}
	}
	panic("negotiation trigger missing")
}

func daysBefore(days int) string {
	return serviceNow.AddDate(0, 0, -days).Format(time.RFC3339)
}

func TestAlertService_RefreshPersistentCreatesAndNotifies(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[
		{"id":"L1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q},
		{"id":"L2","nombre":"Pablo Ruiz","estado":"Negociación","updated_at":%q}
	]`, daysBefore(40), daysBefore(3)))

	delta, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delta.Created)
	assert.Equal(t, 0, delta.Removed)

	pending, err := f.store.ListPendingInstances(context.Background(), alerts.TriggerNegotiationFollowup)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "L1", pending[0].SubjectID)

	require.Len(t, f.notifier.received, 1)
	assert.Contains(t, f.publisher.events, EventAlertsRefreshed)

	// a second pass over the same data changes nothing
	delta, err = f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delta.Created)
	assert.Equal(t, 0, delta.Removed)
	assert.Len(t, f.notifier.received, 1)
}

func TestAlertService_RefreshPersistentRemovesClearedConditions(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[{"id":"L1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q}]`, daysBefore(40)))

	_, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)

	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[{"id":"L1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q}]`, daysBefore(1)))
	delta, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delta.Created)
	assert.Equal(t, 1, delta.Removed)
}

func TestAlertService_RefreshPersistentLeadFetchFailure(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	f.backend.fail(snapshot.TableLeads)

	_, err := f.svc.RefreshPersistent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch leads")
	assert.Empty(t, f.publisher.events)
}

func TestAlertService_RefreshPersistentSkipsMalformedLead(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[
		{"id":"l-1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q},
		{"id":"l-2","nombre":"Pablo Ruiz","estado":"Negociación","updated_at":%q,"responsable":{"id":3}}
	]`, daysBefore(40), daysBefore(40)))

	delta, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delta.Created)

	pending, err := f.store.ListPendingInstances(context.Background(), alerts.TriggerNegotiationFollowup)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l-1", pending[0].SubjectID)
}

func TestAlertService_LiveAlertsSkipMalformedStockRow(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.set(snapshot.TableStock, `[
		{"CODIGO":"A","NOMBRE":"Tornillo M6","CANTIDAD":0,"STOCK_MINIMO":10},
		{"CODIGO":"B","NOMBRE":"Panel 20mm","CANTIDAD":"5","STOCK_MINIMO":1}
	]`)

	live := f.svc.LiveAlerts(context.Background(), "ana")
	require.Len(t, live, 1)
	assert.Equal(t, alerts.TriggerStockOut, live[0].TriggerType)
	assert.Equal(t, 1, live[0].Metadata["total"])
}

func TestAlertService_InactiveTriggerIsSkipped(t *testing.T) {
	def := negotiationTrigger()
	def.Active = false
	f := newServiceFixture(t, def)
	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[{"id":"L1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q}]`, daysBefore(40)))

	delta, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delta.Created)
}

func TestAlertService_RunSharesInFlightPass(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Run(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	f.backend.mu.Lock()
	calls := f.backend.calls[snapshot.TableLeads]
	f.backend.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 1)
	assert.LessOrEqual(t, calls, 5)
}

func TestAlertService_Lifecycle(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[{"id":"L1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q}]`, daysBefore(40)))
	_, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)

	pending, err := f.store.ListPendingInstances(context.Background(), alerts.TriggerNegotiationFollowup)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	inst, err := f.svc.MarkViewed(context.Background(), id, "ana")
	require.NoError(t, err)
	assert.Equal(t, database.StateViewed, inst.State)

	inst, err = f.svc.Resolve(context.Background(), id, "ana")
	require.NoError(t, err)
	assert.Equal(t, database.StateResolved, inst.State)
	assert.Equal(t, "ana", inst.ResolvedBy)
	require.NotNil(t, inst.ResolvedAt)

	_, err = f.svc.Discard(context.Background(), id, "ana")
	assert.True(t, errors.Is(err, database.ErrInvalidTransition))

	_, err = f.svc.MarkViewed(context.Background(), "00000000-0000-0000-0000-000000000000", "ana")
	assert.True(t, errors.Is(err, database.ErrInstanceNotFound))

	assert.Contains(t, f.publisher.events, EventAlertUpdated)
}

func TestAlertService_FeedMergesBothKinds(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	f.backend.set(snapshot.TableLeads, fmt.Sprintf(`[{"id":"L1","nombre":"Marta Gil","estado":"Negociación","updated_at":%q}]`, daysBefore(40)))
	f.backend.set(snapshot.TableStock, `[
		{"CODIGO":"A1","NOMBRE":"Tornillo M6","CANTIDAD":0,"STOCK_MINIMO":10},
		{"CODIGO":"A2","NOMBRE":"Panel 20mm","CANTIDAD":50,"STOCK_MINIMO":5}
	]`)
	_, err := f.svc.RefreshPersistent(context.Background())
	require.NoError(t, err)

	feed, err := f.svc.Feed(context.Background(), Viewer{Username: "admin", Role: alerts.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, feed.Alerts, 2)
	assert.Equal(t, 2, feed.Counts.Total)
	assert.Equal(t, 1, feed.Counts.ByModule[alerts.ModuleCRM])
	assert.Equal(t, 1, feed.Counts.ByModule[alerts.ModuleStock])

	// sales sees only the CRM alert
	feed, err = f.svc.Feed(context.Background(), Viewer{Username: "ana", Role: alerts.RoleSales})
	require.NoError(t, err)
	require.Len(t, feed.Alerts, 1)
	assert.Equal(t, alerts.KindPersistent, feed.Alerts[0].Kind())
}

func TestAlertService_FeedKeepsOldPendingBehindResolvedHistory(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())
	ctx := context.Background()

	rows := []database.AlertInstance{{
		TriggerType: alerts.TriggerNegotiationFollowup,
		SubjectID:   "L-old",
		Title:       "Negociación estancada",
		Priority:    database.PriorityHigh,
		TargetRoles: database.StringList{alerts.RoleAdmin},
		State:       database.StatePending,
		GeneratedAt: serviceNow.AddDate(0, 0, -90),
	}}
	resolvedAt := serviceNow.Add(-time.Minute)
	for i := 0; i < 500; i++ {
		rows = append(rows, database.AlertInstance{
			TriggerType: alerts.TriggerNegotiationFollowup,
			SubjectID:   fmt.Sprintf("L-%d", i),
			Title:       "Negociación estancada",
			Priority:    database.PriorityLow,
			TargetRoles: database.StringList{alerts.RoleAdmin},
			State:       database.StateResolved,
			GeneratedAt: serviceNow.Add(-time.Duration(i+1) * time.Minute),
			ResolvedAt:  &resolvedAt,
		})
	}
	require.NoError(t, f.store.InsertInstances(ctx, rows))

	counts, err := f.svc.Counts(ctx, Viewer{Username: "admin", Role: alerts.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total)
	assert.Equal(t, 1, counts.ByModule[alerts.ModuleCRM])

	feed, err := f.svc.Feed(ctx, Viewer{Username: "admin", Role: alerts.RoleAdmin})
	require.NoError(t, err)
	var found bool
	for _, a := range feed.Alerts {
		if p, ok := a.(alerts.PersistentAlert); ok && p.SubjectID == "L-old" {
			found = true
		}
	}
	assert.True(t, found, "old pending alert missing from the feed")
}

func TestAlertService_DismissIsPerViewer(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.set(snapshot.TableStock, `[{"CODIGO":"A1","NOMBRE":"Tornillo M6","CANTIDAD":0,"STOCK_MINIMO":10}]`)

	id := alerts.LiveAlertID(alerts.TriggerStockOut, alerts.SummarySubject)
	f.svc.Dismiss("luis", id)

	assert.Empty(t, f.svc.LiveAlerts(context.Background(), "luis"))
	assert.Len(t, f.svc.LiveAlerts(context.Background(), "marta"), 1)

	*f.now = f.now.Add(24*time.Hour + time.Minute)
	assert.Len(t, f.svc.LiveAlerts(context.Background(), "luis"), 1, "dismissal expires after 24h")

	f.svc.Dismiss("luis", id)
	f.svc.Undismiss("luis", id)
	assert.Len(t, f.svc.LiveAlerts(context.Background(), "luis"), 1)
}

func TestAlertService_LiveAlertsFallBackToCachedSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.set(snapshot.TableStock, `[{"CODIGO":"A1","NOMBRE":"Tornillo M6","CANTIDAD":0,"STOCK_MINIMO":10}]`)
	require.Len(t, f.svc.LiveAlerts(context.Background(), "ana"), 1)

	f.backend.fail(snapshot.TableStock)
	live := f.svc.LiveAlerts(context.Background(), "ana")
	require.Len(t, live, 1)
	assert.Equal(t, alerts.TriggerStockOut, live[0].TriggerType)
}

func TestAlertService_UpdateTriggerDisablesLiveTrigger(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.set(snapshot.TableStock, `[{"CODIGO":"A1","NOMBRE":"Tornillo M6","CANTIDAD":0,"STOCK_MINIMO":10}]`)
	require.Len(t, f.svc.LiveAlerts(context.Background(), "ana"), 1)

	inactive := false
	updated, err := f.svc.UpdateTrigger(context.Background(), alerts.TriggerStockOut, TriggerUpdate{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, alerts.ModuleStock, updated.Module)

	// the cached trigger list is invalidated by the edit
	assert.Empty(t, f.svc.LiveAlerts(context.Background(), "ana"))
	assert.Contains(t, f.publisher.events, EventTriggerUpdated)
}

func TestAlertService_UpdateTriggerValidation(t *testing.T) {
	f := newServiceFixture(t, negotiationTrigger())

	_, err := f.svc.UpdateTrigger(context.Background(), "no_such_trigger", TriggerUpdate{})
	assert.True(t, errors.Is(err, ErrUnknownTrigger))

	negative := -1
	_, err = f.svc.UpdateTrigger(context.Background(), alerts.TriggerNegotiationFollowup, TriggerUpdate{ThresholdDays: &negative})
	assert.ErrorIs(t, err, ErrInvalidTriggerUpdate)

	bad := database.Priority("urgent")
	_, err = f.svc.UpdateTrigger(context.Background(), alerts.TriggerNegotiationFollowup, TriggerUpdate{Priority: &bad})
	assert.ErrorIs(t, err, ErrInvalidTriggerUpdate)
	assert.NotErrorIs(t, err, ErrUnknownTrigger)

	days := 45
	high := database.PriorityHigh
	updated, err := f.svc.UpdateTrigger(context.Background(), alerts.TriggerNegotiationFollowup, TriggerUpdate{
		ThresholdDays: &days,
		Priority:      &high,
		TargetRoles:   []string{alerts.RoleSales, alerts.RoleAdmin},
	})
	require.NoError(t, err)
	assert.Equal(t, 45, updated.ThresholdDays)
	assert.Equal(t, database.PriorityHigh, updated.Priority)

	stored, err := f.store.GetTrigger(context.Background(), alerts.TriggerNegotiationFollowup)
	require.NoError(t, err)
	assert.Equal(t, 45, stored.ThresholdDays)
	assert.True(t, stored.Active)
}

func TestAlertService_ListTriggersCoversEveryType(t *testing.T) {
	f := newServiceFixture(t, alerts.PersistentTriggerDefaults()...)

	triggers, err := f.svc.ListTriggers(context.Background())
	require.NoError(t, err)
	assert.Len(t, triggers, len(alerts.PersistentTriggerDefaults())+len(alerts.LiveTriggerDefaults()))
	assert.Equal(t, alerts.TriggerQuoteUnanswered, triggers[0].TriggerType)
}
