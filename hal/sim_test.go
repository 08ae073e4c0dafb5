package hal

import "testing"

func TestSimStepFiresAtDeadline(t *testing.T) {
	s := NewSim()
	fired := 0
	s.SetHandler(func() { fired++ })

	s.Set(10)
	if r := s.Remaining(); r != 10 {
		t.Fatalf("Remaining = %d, want 10", r)
	}
	if s.Step(5) {
		t.Fatalf("Step(5) = true before deadline")
	}
	if s.Now() != 5 {
		t.Fatalf("Now = %d, want 5", s.Now())
	}
	if !s.Step(20) {
		t.Fatalf("Step(20) = false, want fire")
	}
	if s.Now() != 10 || fired != 1 {
		t.Fatalf("Now = %d fired = %d, want 10 and 1", s.Now(), fired)
	}
	if _, armed := s.Deadline(); armed {
		t.Fatalf("timer still armed after fire")
	}
}

func TestSimAdvanceRearms(t *testing.T) {
	s := NewSim()
	var at []uint64
	s.SetHandler(func() {
		at = append(at, s.Now())
		if len(at) < 3 {
			s.Set(4)
		}
	})
	s.Set(4)
	s.Advance(20)

	if len(at) != 3 || at[0] != 4 || at[1] != 8 || at[2] != 12 {
		t.Fatalf("fires = %v, want [4 8 12]", at)
	}
	if s.Now() != 20 {
		t.Fatalf("Now = %d, want 20", s.Now())
	}
	sets, stops := s.Programs()
	if sets != 3 || stops != 0 {
		t.Fatalf("Programs = %d,%d, want 3,0", sets, stops)
	}
}

func TestSimStop(t *testing.T) {
	s := NewSim()
	s.SetHandler(func() { t.Fatalf("handler ran after Stop") })
	s.Set(3)
	s.Stop()
	if s.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", s.Remaining())
	}
	s.Advance(10)
}
