package app

import (
	"strings"
	"sync"
	"testing"
	"time"

	"kestrel/hal"
	"kestrel/kernel"
)

const testMS = uint64(time.Millisecond)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB {
	return &testFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFB) Width() int                   { return f.w }
func (f *testFB) Height() int                  { return f.h }
func (f *testFB) Format() hal.PixelFormat      { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int             { return f.w * 2 }
func (f *testFB) Buffer() []byte               { return f.buf }
func (f *testFB) ClearRGB(r, g, b uint8)       {}
func (f *testFB) Present() error               { f.presents++; return nil }
func (f *testFB) Framebuffer() hal.Framebuffer { return f }

func (f *testFB) pixel(x, y int) uint16 {
	off := y*f.w*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) WriteLineString(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

func (l *lineLog) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *lineLog) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.lines {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

type countLED struct {
	mu      sync.Mutex
	toggles int
}

func (l *countLED) High() { l.mu.Lock(); l.toggles++; l.mu.Unlock() }
func (l *countLED) Low()  { l.mu.Lock(); l.toggles++; l.mu.Unlock() }

func (l *countLED) n() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.toggles
}

// simHAL is a HAL on simulated time.
type simHAL struct {
	sim  *hal.Sim
	log  *lineLog
	led  *countLED
	fb   *testFB
	crit *hal.MutexCritical
	sw   *hal.GoroutineSwitcher
}

func newSimHAL() *simHAL {
	return &simHAL{
		sim:  hal.NewSim(),
		log:  &lineLog{},
		led:  &countLED{},
		fb:   newTestFB(64, 40),
		crit: &hal.MutexCritical{},
		sw:   hal.NewGoroutineSwitcher(),
	}
}

func (h *simHAL) Logger() hal.Logger            { return h.log }
func (h *simHAL) LED() hal.LED                  { return h.led }
func (h *simHAL) Display() hal.Display          { return h.fb }
func (h *simHAL) Input() hal.Input              { return nil }
func (h *simHAL) Clock() hal.Clock              { return h.sim }
func (h *simHAL) Timer() hal.Timer              { return h.sim }
func (h *simHAL) Critical() hal.Critical        { return h.crit }
func (h *simHAL) Switcher() hal.ContextSwitcher { return h.sw }

func settle(t *testing.T, s *System) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !s.K.Idle() {
		if time.Now().After(deadline) {
			t.Fatalf("system did not go idle")
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func advance(t *testing.T, h *simHAL, s *System, d uint64) {
	t.Helper()
	target := h.sim.Now() + d
	for h.sim.Step(target) {
		settle(t, s)
	}
}

func TestDemoWorkload(t *testing.T) {
	h := newSimHAL()
	s, err := New(h, Config{Demo: true, StatsEvery: 400 * testMS})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	settle(t, s)

	advance(t, h, s, 1000*testMS)

	if n := h.led.n(); n != 2 {
		t.Fatalf("LED toggles = %d, want 2", n)
	}
	if n := h.log.count("stats: "); n != 2 {
		t.Fatalf("stats reports = %d, want 2", n)
	}
	if n := h.log.count("pool: inuse="); n == 0 {
		t.Fatalf("no pool report")
	}
	if h.log.count("fault: ") != 0 {
		t.Fatalf("unexpected fault: %v", h.log.lines)
	}

	ps := s.demo.buffers.Stats()
	if ps.Allocs == 0 || ps.InUse+ps.Available != ps.BlockCount {
		t.Fatalf("pool stats = %+v, want allocations and conservation", ps)
	}
	if mx := s.demo.shared.Stats(); mx.Locks == 0 {
		t.Fatalf("shared mutex never locked")
	}
}

func TestDemoKeys(t *testing.T) {
	h := newSimHAL()
	s, err := New(h, Config{Demo: true, StatsEvery: 60_000 * testMS})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	settle(t, s)

	s.Key(hal.KeyEvent{Rune: 'x', Press: true})
	settle(t, s)
	if n := h.log.count("monitor: keys"); n != 1 {
		t.Fatalf("monitor lines = %d, want 1", n)
	}
	if n := h.log.count("key: 'x'"); n != 1 {
		t.Fatalf("key lines = %d, want 1", n)
	}

	s.Key(hal.KeyEvent{Code: hal.KeyEnter, Press: true})
	settle(t, s)
	if n := h.log.count("stats: "); n != 1 {
		t.Fatalf("stats reports after Enter = %d, want 1", n)
	}

	s.Key(hal.KeyEvent{Rune: 'y'})
	settle(t, s)
	if n := h.log.count("monitor: keys"); n != 1 {
		t.Fatalf("key release woke monitor")
	}
}

func TestConsoleDrawsText(t *testing.T) {
	fb := newTestFB(64, 40)
	c := NewConsole(fb)
	if c == nil {
		t.Fatalf("NewConsole() = nil")
	}
	before := fb.presents
	c.WriteLineString("hi")

	lit := false
	for _, b := range fb.buf {
		if b != 0 {
			lit = true
			break
		}
	}
	if !lit {
		t.Fatalf("console drew nothing")
	}
	if fb.presents <= before {
		t.Fatalf("presents = %d after write, want > %d", fb.presents, before)
	}
}

func TestNewConsoleWithoutFramebuffer(t *testing.T) {
	if c := NewConsole(nil); c != nil {
		t.Fatalf("NewConsole(nil) = %v, want nil", c)
	}
}

func TestFBDisplayScroll(t *testing.T) {
	fb := newTestFB(4, 4)
	d := newFBDisplay(fb)
	d.SetPixel(1, 0, white)
	d.SetScroll(1)
	if err := d.Display(); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if p := fb.pixel(1, 3); p != 0xFFFF {
		t.Fatalf("pixel(1,3) = %#04x, want 0xffff", p)
	}
	if p := fb.pixel(1, 0); p != 0 {
		t.Fatalf("pixel(1,0) = %#04x, want 0", p)
	}

	d.SetScroll(-1)
	if d.scroll != 3 {
		t.Fatalf("scroll = %d, want 3", d.scroll)
	}
}

func TestMultiLoggerSkipsNil(t *testing.T) {
	a, b := &lineLog{}, &lineLog{}
	m := newMultiLogger(a, nil, b)
	if len(m) != 2 {
		t.Fatalf("len = %d, want 2", len(m))
	}
	m.WriteLineString("x")
	m.WriteLineBytes([]byte("y"))
	if a.count("") != 2 || b.count("") != 2 {
		t.Fatalf("lines = %v / %v", a.lines, b.lines)
	}
}

func TestPanicLines(t *testing.T) {
	lines := panicLines(kernel.PanicInfo{Task: "worker", Value: "boom"})
	want := "Kestrel Panic:|task: worker|panic: boom|stack: unavailable"
	if got := strings.Join(lines, "|"); got != want {
		t.Fatalf("panicLines = %q, want %q", got, want)
	}
}

func TestTakeRunes(t *testing.T) {
	tests := []struct {
		s          string
		n          int16
		head, rest string
	}{
		{"abcdef", 4, "abcd", "ef"},
		{"abc", 4, "abc", ""},
		{"héllo", 2, "hé", "llo"},
		{"", 3, "", ""},
	}
	for _, tt := range tests {
		head, rest := takeRunes(tt.s, tt.n)
		if head != tt.head || rest != tt.rest {
			t.Fatalf("takeRunes(%q, %d) = %q, %q, want %q, %q", tt.s, tt.n, head, rest, tt.head, tt.rest)
		}
	}
}
