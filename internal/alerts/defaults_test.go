package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/config"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
)

func TestPersistentTriggerDefaults(t *testing.T) {
	want := map[string]int{
		TriggerQuoteUnanswered:     7,
		TriggerQualityFollowup:     15,
		TriggerScheduledReview:     2,
		TriggerLeadInactive:        14,
		TriggerOverdueAction:       0,
		TriggerNegotiationFollowup: 30,
	}
	defaults := PersistentTriggerDefaults()
	require.Len(t, defaults, len(want))
	for _, d := range defaults {
		assert.Equal(t, want[d.TriggerType], d.ThresholdDays, d.TriggerType)
		assert.Equal(t, ModuleCRM, d.Module)
		assert.True(t, d.Priority.Valid())
	}
}

func TestApplyOverrides(t *testing.T) {
	off := false
	days := 5
	overrides := []config.TriggerOverride{
		{Type: TriggerStockLow, Active: &off},
		{Type: TriggerHighValueQuote, ThresholdDays: &days, Priority: "high", TargetRoles: []string{"admin"}},
	}

	defaults := LiveTriggerDefaults()
	out, err := ApplyOverrides(defaults, overrides)
	require.NoError(t, err)

	resolver := NewResolver(nil, out)
	low, ok := resolver.Resolve(TriggerStockLow)
	require.True(t, ok)
	assert.False(t, low.Active)

	quote, _ := resolver.Resolve(TriggerHighValueQuote)
	assert.Equal(t, 5, quote.ThresholdDays)
	assert.Equal(t, database.PriorityHigh, quote.Priority)
	assert.Equal(t, database.StringList{"admin"}, quote.TargetRoles)

	original, _ := NewResolver(nil, defaults).Resolve(TriggerStockLow)
	assert.True(t, original.Active, "defaults must not be mutated")
}

func TestApplyOverrides_Errors(t *testing.T) {
	negative := -1
	tests := []struct {
		name     string
		override config.TriggerOverride
	}{
		{"unknown type", config.TriggerOverride{Type: "nope"}},
		{"bad priority", config.TriggerOverride{Type: TriggerStockLow, Priority: "urgent"}},
		{"negative threshold", config.TriggerOverride{Type: TriggerStockLow, ThresholdDays: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyOverrides(LiveTriggerDefaults(), []config.TriggerOverride{tt.override})
			assert.Error(t, err)
		})
	}
}

func TestResolver(t *testing.T) {
	rows := []database.AlertTrigger{{TriggerType: TriggerStockOut, Active: false, Priority: database.PriorityLow}}
	r := NewResolver(rows, LiveTriggerDefaults())

	def, ok := r.Resolve(TriggerStockOut)
	require.True(t, ok)
	assert.False(t, def.Active, "stored row wins")

	def, ok = r.Resolve(TriggerStockLow)
	require.True(t, ok)
	assert.True(t, def.Active, "default fills the gap")

	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}
