package model

import (
	"encoding/json"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestHaltRecord_Apply(t *testing.T) {
	r := HaltRecord{
		HaltID:       "H1",
		Symbol:       "AAPL",
		HaltType:     HaltTypeREG,
		Status:       StatusHalted,
		HaltReason:   "T1",
		ExtendedHalt: false,
	}

	r.Apply(HaltEvent{
		HaltID:       "H1",
		ExtendedHalt: ptr(true),
		Comment:      ptr("news pending"),
	})

	if !r.ExtendedHalt {
		t.Error("ExtendedHalt = false, want true")
	}
	if r.Comment != "news pending" {
		t.Errorf("Comment = %q, want %q", r.Comment, "news pending")
	}
	// Absent fields must survive the merge.
	if r.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", r.Symbol, "AAPL")
	}
	if r.HaltReason != "T1" {
		t.Errorf("HaltReason = %q, want %q", r.HaltReason, "T1")
	}
	if r.Status != StatusHalted {
		t.Errorf("Status = %q, want %q", r.Status, StatusHalted)
	}
}

func TestHaltRecord_ApplyCopiesTimestamps(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC))
	ev := HaltEvent{HaltID: "H1", HaltTime: &ts}

	r := NewRecord(ev)
	ts.Time = ts.Add(time.Hour)

	if r.HaltTime.Display() != "2024-03-01 14:30:00" {
		t.Errorf("HaltTime = %q, want %q", r.HaltTime.Display(), "2024-03-01 14:30:00")
	}
}

func TestHaltRecord_IsExtendedReg(t *testing.T) {
	tests := []struct {
		name string
		r    HaltRecord
		want bool
	}{
		{"reg extended", HaltRecord{HaltType: HaltTypeREG, ExtendedHalt: true}, true},
		{"reg remained", HaltRecord{HaltType: HaltTypeREG, RemainedHalt: true}, true},
		{"reg plain", HaltRecord{HaltType: HaltTypeREG}, false},
		{"sscb extended", HaltRecord{HaltType: HaltTypeSSCB, ExtendedHalt: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.IsExtendedReg(); got != tt.want {
				t.Errorf("IsExtendedReg() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHaltEvent_Unmarshal(t *testing.T) {
	data := `{"haltId":"H1","symbol":"MSFT","haltType":"REG","status":"Halted","state":"Sent",
		"haltTime":"2024-03-01T14:30:00Z","extendedHalt":false,"action":"extend-halt"}`

	var ev HaltEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if ev.HaltID != "H1" {
		t.Errorf("HaltID = %q, want H1", ev.HaltID)
	}
	if ev.StatusValue() != StatusHalted {
		t.Errorf("Status = %q, want %q", ev.StatusValue(), StatusHalted)
	}
	if !ev.StateValue().IsTransit() {
		t.Errorf("State = %q, want transit", ev.StateValue())
	}
	if ev.ExtendedHalt == nil || *ev.ExtendedHalt {
		t.Errorf("ExtendedHalt = %v, want explicit false", ev.ExtendedHalt)
	}
	if ev.RemainedHalt != nil {
		t.Errorf("RemainedHalt = %v, want absent", *ev.RemainedHalt)
	}
	if ev.Action != ActionExtendHalt {
		t.Errorf("Action = %q, want %q", ev.Action, ActionExtendHalt)
	}
}

func TestHaltEvent_ValueAccessorsOnEmpty(t *testing.T) {
	var ev HaltEvent
	if ev.StatusValue() != "" || ev.StateValue() != "" || ev.TypeValue() != "" || ev.SymbolValue() != "" {
		t.Error("accessors on empty event should return zero values")
	}
}

func TestTimestamp_Unmarshal(t *testing.T) {
	want := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		json string
	}{
		{"rfc3339", `"2024-03-01T14:30:00Z"`},
		{"rfc3339 offset", `"2024-03-01T09:30:00-05:00"`},
		{"display layout", `"2024-03-01 14:30:00"`},
		{"iso local", `"2024-03-01T14:30:00"`},
		{"epoch millis number", `1709303400000`},
		{"epoch millis string", `"1709303400000"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.json), &ts); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if !ts.Equal(want) {
				t.Errorf("time = %v, want %v", ts.Time, want)
			}
			if ts.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", ts.Location())
			}
		})
	}
}

func TestTimestamp_NullAndInvalid(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`null`), &ts); err != nil {
		t.Fatalf("null: unexpected error %v", err)
	}
	if !ts.IsZero() {
		t.Error("null should leave zero timestamp")
	}
	if ts.Display() != "" {
		t.Errorf("Display() = %q, want empty", ts.Display())
	}

	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestTimestamp_MarshalRoundTrip(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC))
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"2024-03-01T14:30:00Z"` {
		t.Errorf("marshal = %s, want %q", data, "2024-03-01T14:30:00Z")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aapl", "AAPL"},
		{"  brk.b ", "BRK.B"},
		{"ＩＢＭ", "IBM"}, // full-width
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.in); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMutation_KeyAndValidate(t *testing.T) {
	m := Mutation{HaltRecord: HaltRecord{HaltID: "H1", Symbol: "AAPL"}, Action: ActionExtendHalt}
	if m.Key() != "extend-halt|H1" {
		t.Errorf("Key() = %q, want %q", m.Key(), "extend-halt|H1")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	create := Mutation{HaltRecord: HaltRecord{Symbol: "AAPL"}, Action: ActionCreateImmediateHalt}
	if create.Key() != "create-immediate-halt|AAPL" {
		t.Errorf("Key() = %q, want %q", create.Key(), "create-immediate-halt|AAPL")
	}

	if err := (Mutation{Action: ActionExtendHalt}).Validate(); err != ErrMissingTarget {
		t.Errorf("Validate() = %v, want ErrMissingTarget", err)
	}
	if err := (Mutation{HaltRecord: HaltRecord{HaltID: "H1"}, Action: "explode"}).Validate(); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestMutation_MarshalFlattensRecord(t *testing.T) {
	m := Mutation{HaltRecord: HaltRecord{HaltID: "H1", Symbol: "AAPL", HaltType: HaltTypeREG}, Action: ActionExtendHalt}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if flat["haltId"] != "H1" {
		t.Errorf("haltId = %v, want H1", flat["haltId"])
	}
	if flat["action"] != "extend-halt" {
		t.Errorf("action = %v, want extend-halt", flat["action"])
	}
}
