package reconcile

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/haltwatch/internal/connection"
	"github.com/rickgao/haltwatch/internal/model"
)

// fakeSource is a Source driven by the test.
type fakeSource struct {
	msgs chan connection.TimestampedMessage
	errs chan error

	connectErr error

	mu        sync.Mutex
	url       string
	connected bool
	closed    bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		msgs: make(chan connection.TimestampedMessage, 100),
		errs: make(chan error, 1),
	}
}

func (f *fakeSource) Connect(_ context.Context, url string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.connected = true
	return nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeSource) Messages() <-chan connection.TimestampedMessage { return f.msgs }
func (f *fakeSource) Errors() <-chan error                           { return f.errs }

func (f *fakeSource) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSource) send(raw string) {
	f.msgs <- connection.TimestampedMessage{Data: []byte(raw), ReceivedAt: time.Now()}
}

// manualScheduler runs scheduled flushes only when the test says so.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func (s *manualScheduler) Schedule(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{fn: fn}
	s.tasks = append(s.tasks, task)
	return func() {
		s.mu.Lock()
		task.cancelled = true
		s.mu.Unlock()
	}
}

// pending returns the number of live scheduled tasks.
func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}

// run executes every live task and returns how many ran.
func (s *manualScheduler) run() int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	ran := 0
	for _, task := range tasks {
		s.mu.Lock()
		cancelled := task.cancelled
		s.mu.Unlock()
		if !cancelled {
			task.fn()
			ran++
		}
	}
	return ran
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (n *recordingNotifier) Notify(messages []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, append([]string(nil), messages...))
}

func (n *recordingNotifier) snapshot() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]string(nil), n.calls...)
}

type engineHarness struct {
	engine   *Engine
	store    *Store
	sched    *manualScheduler
	notifier *recordingNotifier
	sources  []*fakeSource
}

func newHarness(t *testing.T, sources ...*fakeSource) *engineHarness {
	t.Helper()
	if len(sources) == 0 {
		sources = []*fakeSource{newFakeSource()}
	}

	h := &engineHarness{
		store:    NewStore(),
		sched:    &manualScheduler{},
		notifier: &recordingNotifier{},
		sources:  sources,
	}

	var mu sync.Mutex
	next := 0
	factory := func() connection.Source {
		mu.Lock()
		defer mu.Unlock()
		src := sources[next]
		next++
		return src
	}

	h.engine = NewEngine(Config{BufferSize: 4}, h.store, factory,
		WithScheduler(h.sched),
		WithNotifier(h.notifier),
	)
	t.Cleanup(func() { h.engine.Close() })
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *engineHarness) buffered() int {
	return h.engine.buffer.Len()
}

func TestEngine_BurstCoalescedIntoOneFlush(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Open(context.Background(), "https://example.com/sse?ticket=t"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src := h.sources[0]
	if src.url != "https://example.com/sse?ticket=t" {
		t.Errorf("source url = %q", src.url)
	}

	src.send(`{"haltId":"A","symbol":"aapl","haltType":"REG","status":"HaltPending"}`)
	src.send(`{"heartbeat":true,"time":"2026-03-02T14:00:00Z"}`)
	src.send(`{"haltId":"B","symbol":"MSFT","haltType":"REG","status":"Halted"}`)
	for i := 0; i < 10; i++ {
		src.send(`{"haltId":"A","status":"HaltPending","action":"modify-scheduled-halt"}`)
	}

	waitFor(t, "buffered events", func() bool { return h.buffered() == 12 })
	if n := h.sched.pending(); n != 1 {
		t.Fatalf("scheduled flushes = %d, want 1", n)
	}
	if h.store.Version() != 0 {
		t.Fatal("nothing should commit before the frame flush")
	}

	if ran := h.sched.run(); ran != 1 {
		t.Fatalf("ran %d flushes, want 1", ran)
	}

	if h.store.Version() != 1 {
		t.Errorf("Version = %d, want 1 commit for the burst", h.store.Version())
	}
	snap := h.store.Snapshot()
	if got := snap.Pending.IDs(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("pending = %v, want [A]", got)
	}
	if got := snap.ActiveReg.IDs(); !slices.Equal(got, []string{"B"}) {
		t.Errorf("activeReg = %v, want [B]", got)
	}
	if r, _ := snap.Pending.Get("A"); r.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want normalized AAPL", r.Symbol)
	}

	calls := h.notifier.snapshot()
	want := []string{"AAPL halt scheduled", "MSFT halt created", "AAPL scheduled halt time updated"}
	if len(calls) != 1 || !slices.Equal(calls[0], want) {
		t.Errorf("notifications = %q, want one call with %q", calls, want)
	}

	stats := h.engine.Stats()
	if stats.Flushes != 1 || stats.EventsApplied != 12 {
		t.Errorf("Stats = %+v", stats)
	}
	if ds := h.engine.DecoderStats(); ds.Heartbeats != 1 {
		t.Errorf("Heartbeats = %d, want 1", ds.Heartbeats)
	}
}

func TestEngine_HeartbeatIsTransparent(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src := h.sources[0]

	src.send(`{"heartbeat":true}`)
	waitFor(t, "heartbeat classified", func() bool { return h.engine.DecoderStats().Heartbeats == 1 })

	if h.sched.pending() != 0 || h.buffered() != 0 {
		t.Error("heartbeat must not be buffered or schedule a flush")
	}
	h.sched.run()
	if h.store.Version() != 0 || len(h.notifier.snapshot()) != 0 {
		t.Error("heartbeat must not change state or notify")
	}
}

func TestEngine_MalformedMessagesSkipped(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src := h.sources[0]

	src.send(`not json`)
	src.send(`{"symbol":"NOID","status":"Halted"}`)
	src.send(`{"haltId":"OK","symbol":"IBM","haltType":"SSCB","status":"ResumptionPending"}`)

	waitFor(t, "buffered events", func() bool { return h.buffered() == 3 })
	h.sched.run()

	snap := h.store.Snapshot()
	if got := snap.ActiveSSCB.IDs(); !slices.Equal(got, []string{"OK"}) {
		t.Errorf("activeSSCB = %v, want [OK]", got)
	}
	if s := h.engine.Stats(); s.Skipped != 2 || s.EventsApplied != 1 {
		t.Errorf("Stats = %+v, want 2 skipped and 1 applied", s)
	}
}

func TestEngine_NoOverlappingSchedules(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src := h.sources[0]

	src.send(`{"haltId":"A","haltType":"REG","status":"HaltPending"}`)
	waitFor(t, "first event", func() bool { return h.buffered() == 1 })
	h.sched.run()

	src.send(`{"haltId":"A","haltType":"REG","status":"Halted"}`)
	src.send(`{"haltId":"B","haltType":"REG","status":"Halted"}`)
	waitFor(t, "second batch", func() bool { return h.buffered() == 2 })
	if n := h.sched.pending(); n != 1 {
		t.Fatalf("scheduled flushes = %d, want 1", n)
	}
	h.sched.run()

	if h.store.Version() != 2 {
		t.Errorf("Version = %d, want 2", h.store.Version())
	}
	if got := h.store.Snapshot().ActiveReg.IDs(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("activeReg = %v, want [A B]", got)
	}
}

func TestEngine_CloseCancelsScheduledFlush(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src := h.sources[0]

	src.send(`{"haltId":"A","haltType":"REG","status":"Halted"}`)
	waitFor(t, "buffered event", func() bool { return h.buffered() == 1 })

	if err := h.engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.engine.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if h.sched.pending() != 0 {
		t.Error("Close should cancel the scheduled flush")
	}
	if h.buffered() != 0 {
		t.Error("Close should discard buffered events")
	}

	// Even a flush that escaped cancellation must not commit.
	h.engine.flush()
	if h.store.Version() != 0 {
		t.Error("no flush may commit after Close")
	}
	if !src.isClosed() {
		t.Error("source should be closed")
	}
	if h.engine.Connected() {
		t.Error("Connected() should be false after Close")
	}
	if err := h.engine.Open(context.Background(), "u"); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close = %v, want ErrClosed", err)
	}
}

func TestEngine_OpenReplacesSource(t *testing.T) {
	first, second := newFakeSource(), newFakeSource()
	h := newHarness(t, first, second)

	if err := h.engine.Open(context.Background(), "u1"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := h.engine.Open(context.Background(), "u2"); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	if !first.isClosed() {
		t.Error("first source should be closed when replaced")
	}
	if second.url != "u2" || !h.engine.Connected() {
		t.Errorf("second source url = %q, connected = %v", second.url, h.engine.Connected())
	}

	// The replaced source is no longer read.
	first.send(`{"haltId":"OLD","haltType":"REG","status":"Halted"}`)
	second.send(`{"haltId":"NEW","haltType":"REG","status":"Halted"}`)
	waitFor(t, "new source event", func() bool { return h.buffered() >= 1 })
	time.Sleep(20 * time.Millisecond)
	h.sched.run()

	snap := h.store.Snapshot()
	if snap.ActiveReg.Has("OLD") {
		t.Error("events from a replaced source must be ignored")
	}
	if !snap.ActiveReg.Has("NEW") {
		t.Error("events from the live source should apply")
	}
}

func TestEngine_TransportErrorStopsUpdates(t *testing.T) {
	first, second := newFakeSource(), newFakeSource()
	h := newHarness(t, first, second)

	if err := h.engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	streamErr := errors.New("connection reset")
	first.errs <- streamErr

	select {
	case err := <-h.engine.Errors():
		if !errors.Is(err, streamErr) {
			t.Errorf("err = %v, want %v", err, streamErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for engine error")
	}

	if h.engine.Connected() {
		t.Error("engine must not stay connected after a transport error")
	}
	if !first.isClosed() {
		t.Error("failed source should be closed")
	}
	if h.engine.Stats().StreamErrors != 1 {
		t.Errorf("StreamErrors = %d, want 1", h.engine.Stats().StreamErrors)
	}

	first.send(`{"haltId":"LATE","haltType":"REG","status":"Halted"}`)
	time.Sleep(20 * time.Millisecond)
	if h.buffered() != 0 || h.sched.pending() != 0 {
		t.Error("no updates after a transport error")
	}

	// The caller reopens explicitly.
	if err := h.engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	second.send(`{"haltId":"NEXT","haltType":"REG","status":"Halted"}`)
	waitFor(t, "event after reopen", func() bool { return h.buffered() == 1 })
	h.sched.run()
	if !h.store.Snapshot().ActiveReg.Has("NEXT") {
		t.Error("reopened stream should deliver events")
	}
}

func TestEngine_ConnectFailure(t *testing.T) {
	src := newFakeSource()
	src.connectErr = &connection.StatusError{StatusCode: 401, Status: "401 Unauthorized"}
	h := newHarness(t, src)

	err := h.engine.Open(context.Background(), "u")
	var statusErr *connection.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Open = %v, want StatusError", err)
	}
	if h.engine.Connected() {
		t.Error("engine should not be connected")
	}
}

func TestEngine_FlushObserver(t *testing.T) {
	src := newFakeSource()
	var (
		mu  sync.Mutex
		got []Applied
	)
	store := NewStore()
	sched := &manualScheduler{}
	engine := NewEngine(Config{}, store, func() connection.Source { return src },
		WithScheduler(sched),
		WithFlushObserver(func(applied []Applied) {
			mu.Lock()
			got = append(got, applied...)
			mu.Unlock()
		}),
	)
	defer engine.Close()

	if engine.Store() != store {
		t.Error("Store() should return the engine's store")
	}
	if err := engine.Open(context.Background(), "u"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src.send(`{"haltId":"A","haltType":"REG","status":"Halted"}`)
	src.send(`{"haltId":"B","haltType":"REG","status":"ResumptionPending"}`)
	waitFor(t, "buffered events", func() bool { return engine.buffer.Len() == 2 })
	sched.run()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("observed %d events, want 2", len(got))
	}
	if got[0].Event.HaltID != "A" || got[0].Collection != model.CollectionActiveReg {
		t.Errorf("applied[0] = %+v", got[0])
	}
	if got[1].Event.HaltID != "B" || got[1].Collection != "" {
		t.Errorf("applied[1] = %+v, want no-op for unknown resumption", got[1])
	}
	if want := `{"haltId":"A","haltType":"REG","status":"Halted"}`; string(got[0].Raw) != want {
		t.Errorf("applied[0].Raw = %s, want %s", got[0].Raw, want)
	}
	if got[0].Event.ReceivedAt.IsZero() {
		t.Error("applied[0].Event.ReceivedAt is zero")
	}
}

func TestFrameScheduler(t *testing.T) {
	done := make(chan struct{})
	cancel := FrameScheduler{Interval: time.Millisecond}.Schedule(func() { close(done) })
	defer cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled function did not run")
	}

	ran := false
	cancel = FrameScheduler{Interval: 50 * time.Millisecond}.Schedule(func() { ran = true })
	cancel()
	time.Sleep(80 * time.Millisecond)
	if ran {
		t.Error("cancelled function ran")
	}
}
