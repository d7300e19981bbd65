package app

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"psd-quiz-service/internal/domain"
	"psd-quiz-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTimer(t *testing.T, clock *fakeClock, opts ...TimerOption) (*ExamTimer, *ExamSessionStore, *memory.KVStore) {
	t.Helper()
	kv := memory.NewKVStore()
	store := NewExamSessionStore(kv, "")
	opts = append([]TimerOption{WithTimerClock(clock.Now), WithTickInterval(time.Hour)}, opts...)
	timer := NewExamTimer(store, opts...)
	t.Cleanup(timer.Close)
	return timer, store, kv
}

func setStartTime(t *testing.T, kv *memory.KVStore, start time.Time) {
	t.Helper()
	if err := kv.Set(context.Background(), startTimeKey, strconv.FormatInt(start.UnixMilli(), 10)); err != nil {
		t.Fatalf("set start time: %v", err)
	}
}

func TestExamTimerActivationWithoutStartTime(t *testing.T) {
	timer, _, _ := newTestTimer(t, newFakeClock())

	if err := timer.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	state := timer.State()
	if state.RemainingSeconds != 3600 || state.Formatted != "60:00" {
		t.Fatalf("expected full hour, got %+v", state)
	}
	if state.Warning || state.Expired || !state.Active {
		t.Fatalf("unexpected flags %+v", state)
	}
}

func TestExamTimerActivationDerivesFromWallClock(t *testing.T) {
	cases := []struct {
		name      string
		elapsed   time.Duration
		remaining int
		warning   bool
		expired   bool
	}{
		{name: "half way", elapsed: 30 * time.Minute, remaining: 1800},
		{name: "warning window", elapsed: 56 * time.Minute, remaining: 240, warning: true},
		{name: "warning boundary", elapsed: 55 * time.Minute, remaining: 300, warning: true},
		{name: "partial second", elapsed: 10*time.Minute + 700*time.Millisecond, remaining: 3000},
		{name: "long gone", elapsed: 2 * time.Hour, remaining: 0, expired: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock()
			expirations := 0
			timer, _, kv := newTestTimer(t, clock, OnExpired(func() { expirations++ }))
			setStartTime(t, kv, clock.Now().Add(-tc.elapsed))

			if err := timer.Activate(context.Background()); err != nil {
				t.Fatalf("activate: %v", err)
			}
			state := timer.State()
			if state.RemainingSeconds != tc.remaining {
				t.Fatalf("expected %ds, got %ds", tc.remaining, state.RemainingSeconds)
			}
			if state.Warning != tc.warning || state.Expired != tc.expired {
				t.Fatalf("expected warning=%v expired=%v, got %+v", tc.warning, tc.expired, state)
			}
			if expirations != 0 {
				t.Fatalf("activation must not fire expiration")
			}
		})
	}
}

func TestExamTimerExpiresExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	expirations := 0
	timer, _, kv := newTestTimer(t, clock, OnExpired(func() { expirations++ }))
	setStartTime(t, kv, clock.Now().Add(-(time.Hour - time.Second)))

	if err := timer.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := timer.State().RemainingSeconds; got != 1 {
		t.Fatalf("expected 1s left, got %d", got)
	}

	clock.Advance(time.Second)
	timer.Tick()
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		timer.Tick()
	}

	if expirations != 1 {
		t.Fatalf("expected exactly one expiration, got %d", expirations)
	}
	state := timer.State()
	if state.RemainingSeconds != 0 || !state.Expired || state.Warning {
		t.Fatalf("expected clamped expired state, got %+v", state)
	}
}

func TestExamTimerTickDoesNotDriftAfterSuspension(t *testing.T) {
	clock := newFakeClock()
	timer, _, kv := newTestTimer(t, clock)
	setStartTime(t, kv, clock.Now())
	_ = timer.Activate(context.Background())

	// no ticks for 40 minutes, then a single one
	clock.Advance(40 * time.Minute)
	timer.Tick()
	if got := timer.State().Formatted; got != "20:00" {
		t.Fatalf("expected 20:00, got %s", got)
	}
}

func TestExamTimerResetRearmsExpiration(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	expirations := 0
	timer, store, kv := newTestTimer(t, clock, OnExpired(func() { expirations++ }))

	setStartTime(t, kv, clock.Now().Add(-(time.Hour - time.Second)))
	_ = timer.Activate(ctx)
	clock.Advance(time.Second)
	timer.Tick()
	if expirations != 1 {
		t.Fatalf("expected first expiration, got %d", expirations)
	}

	if err := timer.ResetTimer(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ok, _ := store.HasActiveSession(ctx); ok {
		t.Fatalf("expected reset to clear the persisted session")
	}
	if got := timer.State().RemainingSeconds; got != 3600 {
		t.Fatalf("expected full duration after reset, got %d", got)
	}

	setStartTime(t, kv, clock.Now().Add(-(time.Hour - time.Second)))
	_ = timer.Activate(ctx)
	clock.Advance(time.Second)
	timer.Tick()
	if expirations != 2 {
		t.Fatalf("expected second cycle to expire independently, got %d", expirations)
	}
}

func TestExamTimerDeactivateFreezes(t *testing.T) {
	clock := newFakeClock()
	timer, _, _ := newTestTimer(t, clock)
	_ = timer.Activate(context.Background())

	clock.Advance(10 * time.Second)
	timer.Tick()
	timer.Deactivate()

	clock.Advance(100 * time.Second)
	timer.Tick()
	state := timer.State()
	if state.RemainingSeconds != 3590 || state.Active {
		t.Fatalf("expected frozen 3590s inactive, got %+v", state)
	}
}

func TestExamTimerBackgroundTicking(t *testing.T) {
	kv := memory.NewKVStore()
	store := NewExamSessionStore(kv, "")
	expired := make(chan struct{}, 4)
	ticks := make(chan int, 64)
	timer := NewExamTimer(store,
		WithTickInterval(10*time.Millisecond),
		OnTick(func(s domain.TimerState) {
			select {
			case ticks <- s.RemainingSeconds:
			default:
			}
		}),
		OnExpired(func() { expired <- struct{}{} }),
	)
	defer timer.Close()

	// a fraction of the last second left
	setStartTime(t, kv, time.Now().Add(-(time.Hour - 20*time.Millisecond)))
	if err := timer.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatalf("timer did not expire")
	}
	select {
	case <-expired:
		t.Fatalf("expiration fired twice")
	case <-time.After(100 * time.Millisecond):
	}
	if len(ticks) == 0 {
		t.Fatalf("expected tick callbacks")
	}
	if !timer.Expired() {
		t.Fatalf("expected expired timer")
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		309 * time.Second:           "05:09",
		0:                           "00:00",
		time.Hour:                   "60:00",
		100 * time.Minute:           "100:00",
		-5 * time.Second:            "00:00",
		59 * time.Second:            "00:59",
		5*time.Minute + time.Second: "05:01",
	}
	for d, want := range cases {
		if got := FormatRemaining(d); got != want {
			t.Fatalf("FormatRemaining(%v): expected %s, got %s", d, want, got)
		}
	}
}
