package kernel

import (
	"bytes"
	"errors"
	"testing"

	"kestrel/kernel/kerr"
)

func TestQueueOverflowScenario(t *testing.T) {
	h := newHarness(t, Config{})
	q, err := h.k.NewQueue("q", 4, 2)
	if err != nil {
		t.Fatalf("NewQueue() error = %v", err)
	}

	for i, item := range [][]byte{{1}, {2}} {
		if err := q.TrySend(item); err != nil {
			t.Fatalf("TrySend(%d) error = %v", i, err)
		}
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if !q.IsFull() || q.Space() != 0 {
		t.Fatalf("IsFull() = %v, Space() = %d, want full", q.IsFull(), q.Space())
	}
	if err := q.TrySend([]byte{3}); !errors.Is(err, kerr.Timeout) {
		t.Fatalf("TrySend() on full = %v, want %v", err, kerr.Timeout)
	}
	if got := q.Stats().Overflows; got != 1 {
		t.Fatalf("Overflows = %d, want 1", got)
	}

	buf := make([]byte, 4)
	if n, err := q.TryReceive(buf); err != nil || n != 4 {
		t.Fatalf("TryReceive() = %d, %v, want 4, nil", n, err)
	}
	if !bytes.Equal(buf, []byte{1, 0, 0, 0}) {
		t.Fatalf("TryReceive() item = %v, want [1 0 0 0]", buf)
	}
	if err := q.TrySend([]byte{3}); err != nil {
		t.Fatalf("TrySend() after receive = %v", err)
	}

	for _, want := range []byte{2, 3} {
		if _, err := q.TryReceive(buf); err != nil {
			t.Fatalf("TryReceive() error = %v", err)
		}
		if buf[0] != want {
			t.Fatalf("TryReceive() item = %d, want %d", buf[0], want)
		}
	}
	if !q.IsEmpty() {
		t.Fatalf("IsEmpty() = false after draining")
	}
	if _, err := q.TryReceive(buf); !errors.Is(err, kerr.Timeout) {
		t.Fatalf("TryReceive() on empty = %v, want %v", err, kerr.Timeout)
	}
}

func TestQueueSizeChecks(t *testing.T) {
	h := newHarness(t, Config{})
	if _, err := h.k.NewQueue("bad", 0, 1); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("NewQueue(itemSize=0) = %v, want %v", err, kerr.InvalidParam)
	}
	q, _ := h.k.NewQueue("q", 4, 1)
	if err := q.TrySend(make([]byte, 5)); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("TrySend(5 bytes) = %v, want %v", err, kerr.InvalidParam)
	}
	if _, err := q.TryReceive(make([]byte, 3)); !errors.Is(err, kerr.InvalidParam) {
		t.Fatalf("TryReceive(3-byte buf) = %v, want %v", err, kerr.InvalidParam)
	}
}

func TestQueueBlockingReceive(t *testing.T) {
	h := newHarness(t, Config{})
	q, _ := h.k.NewQueue("q", 2, 4)
	var tr trace
	h.spawn("rx", PriorityNormal, func() {
		buf := make([]byte, 8)
		for i := 0; i < 2; i++ {
			n, err := q.Receive(buf, Forever)
			tr.add("%v:%d:%v", err, n, buf[:n])
		}
	})
	h.start()

	if got := q.Stats().Receivers; got != 1 {
		t.Fatalf("Receivers = %d, want 1", got)
	}
	if err := q.SendFromISR([]byte{7}); err != nil {
		t.Fatalf("SendFromISR() error = %v", err)
	}
	h.settle()
	if err := q.Send([]byte{8, 9}, NoWait); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	h.settle()

	if got, want := tr.String(), "<nil>:2:[7 0] <nil>:2:[8 9]"; got != want {
		t.Fatalf("trace = %q, want %q", got, want)
	}
}

func TestQueueBlockedSenderRefills(t *testing.T) {
	h := newHarness(t, Config{})
	q, _ := h.k.NewQueue("q", 1, 1)
	var tr trace
	h.spawn("tx", PriorityNormal, func() {
		for i := byte(1); i <= 3; i++ {
			tr.add("send%d:%v", i, q.Send([]byte{i}, Forever))
		}
	})
	h.start()

	if got, want := tr.String(), "send1:<nil>"; got != want {
		t.Fatalf("trace = %q, want %q", got, want)
	}
	buf := make([]byte, 1)
	var got []byte
	for i := 0; i < 3; i++ {
		if _, err := q.TryReceive(buf); err != nil {
			t.Fatalf("TryReceive(%d) error = %v", i, err)
		}
		got = append(got, buf[0])
		h.settle()
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("received %v, want [1 2 3]", got)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}

func TestQueueFIFOProperty(t *testing.T) {
	h := newHarness(t, Config{})
	q, _ := h.k.NewQueue("q", 1, 3)
	next, want := byte(0), byte(0)
	buf := make([]byte, 1)
	// Interleave bursts of sends and receives without overflowing.
	for _, burst := range []int{3, -2, 2, -3, 1, 2, -3} {
		for ; burst > 0; burst-- {
			if err := q.TrySend([]byte{next}); err != nil {
				t.Fatalf("TrySend(%d) error = %v", next, err)
			}
			next++
		}
		for ; burst < 0; burst++ {
			if _, err := q.TryReceive(buf); err != nil {
				t.Fatalf("TryReceive() error = %v", err)
			}
			if buf[0] != want {
				t.Fatalf("TryReceive() = %d, want %d", buf[0], want)
			}
			want++
		}
		if n := q.Len(); n < 0 || n > q.Cap() {
			t.Fatalf("Len() = %d out of [0, %d]", n, q.Cap())
		}
	}
}

func TestQueueResetAndDelete(t *testing.T) {
	h := newHarness(t, Config{})
	q, _ := h.k.NewQueue("q", 1, 2)
	_ = q.TrySend([]byte{1})
	if err := q.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !q.IsEmpty() {
		t.Fatalf("IsEmpty() = false after Reset")
	}
	if err := q.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := q.TrySend([]byte{1}); !errors.Is(err, kerr.Deleted) {
		t.Fatalf("TrySend() after Delete = %v, want %v", err, kerr.Deleted)
	}
	if _, err := q.TryReceive(make([]byte, 1)); !errors.Is(err, kerr.Deleted) {
		t.Fatalf("TryReceive() after Delete = %v, want %v", err, kerr.Deleted)
	}
}
