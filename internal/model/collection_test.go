package model

import (
	"reflect"
	"testing"
)

func TestCollection_UpsertAndRemove(t *testing.T) {
	var c Collection

	if !c.Upsert(HaltRecord{HaltID: "H1", Symbol: "A"}) {
		t.Error("first Upsert should append")
	}
	c.Upsert(HaltRecord{HaltID: "H2", Symbol: "B"})
	if c.Upsert(HaltRecord{HaltID: "H1", Symbol: "A2"}) {
		t.Error("second Upsert for H1 should replace, not append")
	}

	if len(c) != 2 {
		t.Fatalf("len = %d, want 2", len(c))
	}
	if c[0].Symbol != "A2" {
		t.Errorf("c[0].Symbol = %q, want A2 (replaced in place)", c[0].Symbol)
	}

	if !c.Remove("H1") {
		t.Error("Remove(H1) = false, want true")
	}
	if c.Remove("H1") {
		t.Error("second Remove(H1) = true, want false")
	}
	if !reflect.DeepEqual(c.IDs(), []string{"H2"}) {
		t.Errorf("IDs() = %v, want [H2]", c.IDs())
	}
}

func TestCollection_CloneIsIndependent(t *testing.T) {
	c := Collection{{HaltID: "H1"}, {HaltID: "H2"}}
	clone := c.Clone()
	clone.Remove("H1")
	clone.Upsert(HaltRecord{HaltID: "H3"})

	if !reflect.DeepEqual(c.IDs(), []string{"H1", "H2"}) {
		t.Errorf("original IDs() = %v, want [H1 H2]", c.IDs())
	}
}

func TestIDSet_Operations(t *testing.T) {
	a := NewIDSet("H1", "H2", "H3")
	b := NewIDSet("H2", "H4")

	if got := a.Union(b).Sorted(); !reflect.DeepEqual(got, []string{"H1", "H2", "H3", "H4"}) {
		t.Errorf("Union = %v", got)
	}
	if got := a.Difference(b).Sorted(); !reflect.DeepEqual(got, []string{"H1", "H3"}) {
		t.Errorf("Difference = %v", got)
	}
	if len(a) != 3 {
		t.Errorf("Union/Difference mutated receiver: len = %d", len(a))
	}
}

func TestSnapshot_NonExtendedCount(t *testing.T) {
	s := NewSnapshot()
	s.ActiveRegHaltList = NewIDSet("H1", "H2", "H3")
	s.ExtendedRegHaltIDs = NewIDSet("H2")

	if got := s.NonExtendedCount(); got != 2 {
		t.Errorf("NonExtendedCount() = %d, want 2", got)
	}
}

func TestSnapshot_LocateAndClone(t *testing.T) {
	s := NewSnapshot()
	s.Pending.Upsert(HaltRecord{HaltID: "H1"})
	s.Lifted.Upsert(HaltRecord{HaltID: "H2"})

	name, _, ok := s.Locate("H2")
	if !ok || name != CollectionLifted {
		t.Errorf("Locate(H2) = %q, %v, want lifted, true", name, ok)
	}
	if _, _, ok := s.Locate("H9"); ok {
		t.Error("Locate(H9) should miss")
	}

	clone := s.Clone()
	clone.Pending.Remove("H1")
	clone.HaltList.Add("H1")
	if !s.Pending.Has("H1") {
		t.Error("Clone shares collection storage with original")
	}
	if s.HaltList.Has("H1") {
		t.Error("Clone shares index storage with original")
	}
}
