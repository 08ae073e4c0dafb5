package app

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"kestrel/hal"
	"kestrel/kernel"
)

const (
	logItem     = 96
	logDepth    = 16
	workDepth   = 8
	poolBlocks  = 6
	poolBlockSz = 32

	ms = uint64(1_000_000)

	blinkPeriod = 500 * ms
)

var (
	keyAny   = kernel.Bit(0)
	keyEnter = kernel.Bit(1)
	keyEsc   = kernel.Bit(2)
)

// demo is a small workload that exercises every kernel primitive.
type demo struct {
	k   *kernel.Kernel
	led hal.LED
	log hal.Logger

	logQ    *kernel.Queue
	work    *kernel.Queue
	keys    *kernel.EventGroup
	shared  *kernel.Mutex
	buffers *kernel.Pool
	blinker *kernel.Timer

	// slots holds pool blocks in flight from producer to consumer, indexed
	// by sequence number modulo the pool size.
	slots [poolBlocks][]byte

	ledOn      bool
	boosts     uint32
	statsEvery uint64
}

func newDemo(k *kernel.Kernel, h hal.HAL, log hal.Logger, statsEvery uint64) (*demo, error) {
	d := &demo{k: k, led: h.LED(), log: log, statsEvery: statsEvery}

	var err error
	if d.logQ, err = k.NewQueue("log", logItem, logDepth); err != nil {
		return nil, err
	}
	if d.work, err = k.NewQueue("work", 4, workDepth); err != nil {
		return nil, err
	}
	if d.keys, err = k.NewEventGroup("keys"); err != nil {
		return nil, err
	}
	if d.shared, err = k.NewMutex(kernel.MutexParams{Name: "shared", Protocol: kernel.Inherit}); err != nil {
		return nil, err
	}
	if d.buffers, err = k.NewPool("buffers", poolBlockSz, poolBlocks, nil); err != nil {
		return nil, err
	}
	if d.blinker, err = k.NewTimer(kernel.TimerParams{
		Name:       "blinker",
		Period:     blinkPeriod,
		AutoReload: true,
		Callback:   func(*kernel.Timer, any) { d.toggle() },
	}); err != nil {
		return nil, err
	}
	k.OnStartup(func() { _ = d.blinker.Start() })

	tasks := []kernel.TaskParams{
		{Name: "logger", Entry: d.logger, Priority: kernel.PriorityHigh + 2},
		{Name: "monitor", Entry: d.monitor, Priority: kernel.PriorityHigh + 1},
		{Name: "producer", Entry: d.producer, Priority: kernel.PriorityNormal, Flags: kernel.FlagStackCheck},
		{Name: "consumer", Entry: d.consumer, Priority: kernel.PriorityNormal + 1, Flags: kernel.FlagStackCheck},
		{Name: "worker-hi", Entry: d.worker, Arg: workerParams{hold: 5 * ms, rest: 70 * ms}, Priority: kernel.PriorityNormal - 4},
		{Name: "worker-lo", Entry: d.worker, Arg: workerParams{hold: 30 * ms, rest: 40 * ms}, Priority: kernel.PriorityLow},
		{Name: "stats", Entry: d.stats, Priority: kernel.PriorityLow + 2, Flags: kernel.FlagStackCheck},
	}
	for _, p := range tasks {
		if _, err := k.SpawnTask(p); err != nil {
			return nil, fmt.Errorf("task %s: %w", p.Name, err)
		}
	}
	return d, nil
}

// logf queues a line for the logger task. Lines are cut to the queue item
// size; if the queue stays full the line goes straight to the logger.
func (d *demo) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if len(line) > logItem {
		line = line[:logItem]
	}
	if err := d.logQ.Send([]byte(line), 10*ms); err != nil {
		d.log.WriteLineString(line)
	}
}

func (d *demo) logger(any) {
	buf := make([]byte, logItem)
	for {
		n, err := d.logQ.Receive(buf, kernel.Forever)
		if err != nil {
			return
		}
		d.log.WriteLineBytes(bytes.TrimRight(buf[:n], "\x00"))
	}
}

func (d *demo) toggle() {
	if d.led == nil {
		return
	}
	d.ledOn = !d.ledOn
	if d.ledOn {
		d.led.High()
	} else {
		d.led.Low()
	}
}

// key runs outside task context.
func (d *demo) key(ev hal.KeyEvent) {
	if !ev.Press {
		return
	}
	bits := keyAny
	switch ev.Code {
	case hal.KeyEnter:
		bits |= keyEnter
	case hal.KeyEscape:
		bits |= keyEsc
	}
	_, _ = d.keys.SetFromISR(bits)
	if ev.Rune != 0 {
		_ = d.logQ.SendFromISR([]byte(fmt.Sprintf("key: %q", ev.Rune)))
	}
}

func (d *demo) monitor(any) {
	for {
		bits, err := d.keys.Wait(keyAny|keyEnter|keyEsc, kernel.ClearOnExit, kernel.Forever)
		if err != nil {
			return
		}
		switch {
		case bits&keyEnter != 0:
			d.report()
		case bits&keyEsc != 0:
			if _, err := d.keys.Clear(^uint32(0)); err == nil {
				d.logf("monitor: escape")
			}
		default:
			d.logf("monitor: keys %#03b", bits)
		}
	}
}

func (d *demo) producer(any) {
	var seq uint32
	msg := make([]byte, 4)
	for {
		b, err := d.buffers.Alloc(20 * ms)
		if err != nil {
			d.logf("producer: alloc: %v", err)
			_ = d.k.DelayMS(50)
			continue
		}
		for i := range b {
			b[i] = byte(seq) + byte(i)
		}
		slot := seq % poolBlocks
		d.slots[slot] = b

		binary.LittleEndian.PutUint32(msg, seq)
		if err := d.work.Send(msg, 100*ms); err != nil {
			d.slots[slot] = nil
			_ = d.buffers.Free(b)
			d.logf("producer: send %d: %v", seq, err)
		} else {
			seq++
		}
		_ = d.k.DelayMS(20)
	}
}

func (d *demo) consumer(any) {
	msg := make([]byte, 4)
	var bad uint32
	for {
		if _, err := d.work.Receive(msg, kernel.Forever); err != nil {
			return
		}
		seq := binary.LittleEndian.Uint32(msg)
		slot := seq % poolBlocks
		b := d.slots[slot]
		d.slots[slot] = nil
		if b == nil {
			bad++
			continue
		}
		for i := range b {
			if b[i] != byte(seq)+byte(i) {
				bad++
				break
			}
		}
		if err := d.buffers.Free(b); err != nil {
			d.logf("consumer: free %d: %v", seq, err)
		}
		if seq%50 == 49 {
			d.logf("consumer: %d blocks, %d bad", seq+1, bad)
		}
	}
}

type workerParams struct {
	hold, rest uint64
}

func (d *demo) worker(arg any) {
	p := arg.(workerParams)
	self := d.k.Current()
	for {
		if err := d.shared.Lock(200 * ms); err != nil {
			d.logf("%s: lock: %v", self.Name(), err)
			continue
		}
		if self.Priority() < self.BasePriority() {
			d.boosts++
		}
		_ = d.k.Delay(p.hold)
		_ = d.shared.Unlock()
		_ = d.k.Delay(p.rest)
	}
}

func (d *demo) stats(any) {
	for {
		if err := d.k.Delay(d.statsEvery); err != nil {
			return
		}
		d.report()
	}
}

func (d *demo) report() {
	st := d.k.Stats()
	d.logf("stats: up=%dms switches=%d idle=%d irq=%d tasks=%d ready=%d blocked=%d",
		st.Uptime/ms, st.Switches, st.IdleEntries, st.Interrupts, st.Tasks, st.Ready, st.Blocked)
	d.logf("time: %s", d.k.TimeInfo())

	ps := d.buffers.Stats()
	d.logf("pool: inuse=%d peak=%d allocs=%d frees=%d failed=%d waits=%d",
		ps.InUse, ps.Peak, ps.Allocs, ps.Frees, ps.Failed, ps.Waits)

	qs := d.work.Stats()
	d.logf("queue: sent=%d peak=%d overflows=%d", qs.Sent, qs.Peak, qs.Overflows)

	mx := d.shared.Stats()
	d.logf("mutex: locks=%d contentions=%d boosts=%d seen=%d",
		mx.Locks, mx.Contentions, mx.Boosts, d.boosts)

	tm := d.blinker.Stats()
	d.logf("blinker: triggers=%d missed=%d", tm.Triggers, tm.Missed)
}
