package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/swarmpulse/schema"
	"github.com/c360/swarmpulse/stomp"
)

// fakeSchema is a SchemaSource whose state is set by the test.
type fakeSchema struct {
	mu        sync.Mutex
	state     schema.State
	listeners map[int]func(schema.State)
	next      int
	loads     atomic.Int32
}

func newFakeSchema(st schema.State) *fakeSchema {
	return &fakeSchema{state: st, listeners: make(map[int]func(schema.State))}
}

func (f *fakeSchema) State() schema.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSchema) Load(context.Context) schema.State {
	f.loads.Add(1)
	return f.State()
}

func (f *fakeSchema) Subscribe(fn func(schema.State)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	st := f.state
	f.mu.Unlock()
	fn(st)
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeSchema) set(st schema.State) {
	f.mu.Lock()
	f.state = st
	ls := make([]func(schema.State), 0, len(f.listeners))
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(st)
	}
}

// fakeConn is a Connection driven by the test.
type fakeConn struct {
	mu       sync.Mutex
	state    stomp.State
	cfg      stomp.Config
	calls    []string
	stateLs  map[int]func(stomp.State)
	msgLs    map[int]func(stomp.Message)
	next     int
	startErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		stateLs: make(map[int]func(stomp.State)),
		msgLs:   make(map[int]func(stomp.Message)),
	}
}

func (f *fakeConn) Start() error {
	f.mu.Lock()
	f.calls = append(f.calls, "start")
	err := f.startErr
	f.mu.Unlock()
	return err
}

func (f *fakeConn) Stop() {
	f.mu.Lock()
	f.calls = append(f.calls, "stop")
	f.mu.Unlock()
}

func (f *fakeConn) State() stomp.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) Config() stomp.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakeConn) Reconfigure(cfg stomp.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	f.calls = append(f.calls, "reconfigure")
}

func (f *fakeConn) SubscribeState(fn func(stomp.State)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.stateLs[id] = fn
	st := f.state
	f.mu.Unlock()
	fn(st)
	return func() {
		f.mu.Lock()
		delete(f.stateLs, id)
		f.mu.Unlock()
	}
}

func (f *fakeConn) SubscribeMessages(fn func(stomp.Message)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.msgLs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.msgLs, id)
		f.mu.Unlock()
	}
}

func (f *fakeConn) setState(states ...stomp.State) {
	for _, s := range states {
		f.mu.Lock()
		f.state = s
		ls := make([]func(stomp.State), 0, len(f.stateLs))
		for _, l := range f.stateLs {
			ls = append(ls, l)
		}
		f.mu.Unlock()
		for _, l := range ls {
			l(s)
		}
	}
}

func (f *fakeConn) emit(msg stomp.Message) {
	f.mu.Lock()
	ls := make([]func(stomp.Message), 0, len(f.msgLs))
	for _, l := range f.msgLs {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(msg)
	}
}

func (f *fakeConn) takeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

// countingRefresher counts calls and optionally blocks until released.
type countingRefresher struct {
	calls  atomic.Int32
	result atomic.Bool
	gate   chan struct{}
}

func newCountingRefresher(result bool) *countingRefresher {
	r := &countingRefresher{}
	r.result.Store(result)
	return r
}

func (r *countingRefresher) Refresh(ctx context.Context) bool {
	r.calls.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return false
		}
	}
	return r.result.Load()
}

// manualClock is a settable time source.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
