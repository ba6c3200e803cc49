package database

import (
	"encoding/json"
	"testing"
)

func TestStringList_Scan(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    []string
		wantErr bool
	}{
		{
			name:  "nil value",
			input: nil,
			want:  []string{},
		},
		{
			name:  "bytes",
			input: []byte(`["admin","compras"]`),
			want:  []string{"admin", "compras"},
		},
		{
			name:  "string",
			input: `["encargado"]`,
			want:  []string{"encargado"},
		},
		{
			name:  "empty string",
			input: "",
			want:  []string{},
		},
		{
			name:    "invalid JSON",
			input:   []byte(`not json`),
			wantErr: true,
		},
		{
			name:    "wrong type",
			input:   42,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StringList
			err := s.Scan(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(s) != len(tt.want) {
				t.Fatalf("Scan() = %v, want %v", s, tt.want)
			}
			for i := range tt.want {
				if s[i] != tt.want[i] {
					t.Errorf("Scan()[%d] = %q, want %q", i, s[i], tt.want[i])
				}
			}
		})
	}
}

func TestStringList_Value(t *testing.T) {
	v, err := StringList(nil).Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "[]" {
		t.Errorf("expected nil list to store as [], got %v", v)
	}

	v, err = StringList{"admin", "compras"}.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	var decoded []string
	if err := json.Unmarshal([]byte(v.(string)), &decoded); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[1] != "compras" {
		t.Errorf("unexpected stored value %v", v)
	}
}

func TestStringList_Contains(t *testing.T) {
	roles := StringList{"admin", "compras"}
	if !roles.Contains("compras") {
		t.Error("expected list to contain compras")
	}
	if roles.Contains("encargado") {
		t.Error("expected list not to contain encargado")
	}
}

func TestPriority_Rank(t *testing.T) {
	if !(PriorityHigh.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityLow.Rank()) {
		t.Error("expected high < medium < low")
	}
	if Priority("urgent").Rank() <= PriorityLow.Rank() {
		t.Error("expected unknown priorities to sort last")
	}
	if Priority("urgent").Valid() {
		t.Error("expected unknown priority to be invalid")
	}
}

func TestInstanceState_IsTerminal(t *testing.T) {
	tests := map[InstanceState]bool{
		StatePending:   false,
		StateViewed:    false,
		StateResolved:  true,
		StateDiscarded: true,
	}
	for state, want := range tests {
		if got := state.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", state, got, want)
		}
	}
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		name  string
		model interface{ TableName() string }
		want  string
	}{
		{"AlertTrigger", AlertTrigger{}, "alert_triggers"},
		{"AlertInstance", AlertInstance{}, "alert_instances"},
		{"SnapshotEntry", SnapshotEntry{}, "snapshot_cache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.TableName(); got != tt.want {
				t.Errorf("TableName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStockItem_JSONColumns(t *testing.T) {
	raw := `{"CODIGO":"TOR-01","NOMBRE":"Tornillo","CANTIDAD":5,"STOCK_MINIMO":10,"UBICACION":"A1"}`
	var item StockItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Code != "TOR-01" || item.Quantity != 5 || item.Minimum != 10 {
		t.Errorf("unexpected item %+v", item)
	}
}
