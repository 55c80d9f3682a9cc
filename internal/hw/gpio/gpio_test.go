package gpio

import "testing"

func TestMockDriver_WriteRead(t *testing.T) {
	m := NewMockDriver()
	if err := m.WritePin(17, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	lvl, err := m.ReadPin(17)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if lvl != High {
		t.Errorf("ReadPin = %v, want HIGH", lvl)
	}
	if m.Level(18) != Low {
		t.Error("unwritten pin should read LOW")
	}
}

func TestMockDriver_EdgesAreLatchedOnce(t *testing.T) {
	m := NewMockDriver()
	if err := m.WatchRisingEdge(4); err != nil {
		t.Fatalf("WatchRisingEdge: %v", err)
	}
	m.TriggerEdge(4)
	m.TriggerEdge(4)

	for i := 0; i < 2; i++ {
		ok, err := m.EdgeDetected(4)
		if err != nil || !ok {
			t.Fatalf("edge %d: got (%v, %v), want (true, nil)", i, ok, err)
		}
	}
	if ok, _ := m.EdgeDetected(4); ok {
		t.Error("third read should report no edge")
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLevel_String(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Errorf("String() = %q/%q", High.String(), Low.String())
	}
}
