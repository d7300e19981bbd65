package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"psd-quiz-service/internal/domain"
)

const (
	DefaultExamDuration     = 60 * time.Minute
	DefaultWarningThreshold = 5 * time.Minute
	defaultTickInterval     = time.Second
)

// StartTimeStore is the part of the exam session store the timer needs.
type StartTimeStore interface {
	StartTime(ctx context.Context) (time.Time, bool, error)
	Clear(ctx context.Context) error
}

// ExamTimer counts an exam down from the persisted start time. Remaining time
// is always derived from the wall clock, so missed or late ticks never cause
// drift. The expiration callback fires at most once per timer lifetime.
type ExamTimer struct {
	store     StartTimeStore
	now       func() time.Time
	interval  time.Duration
	duration  time.Duration
	warning   time.Duration
	onTick    func(domain.TimerState)
	onExpired func()

	mu         sync.Mutex
	active     bool
	anchor     time.Time
	remaining  time.Duration
	expired    bool // latch
	generation uint64
	cancel     context.CancelFunc
}

// TimerOption customises an ExamTimer.
type TimerOption func(*ExamTimer)

func WithTimerClock(now func() time.Time) TimerOption {
	return func(t *ExamTimer) { t.now = now }
}

// WithTickInterval changes how often the countdown is refreshed.
func WithTickInterval(d time.Duration) TimerOption {
	return func(t *ExamTimer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithDuration overrides the exam length and the warning threshold.
func WithDuration(total, warning time.Duration) TimerOption {
	return func(t *ExamTimer) {
		if total > 0 {
			t.duration = total
		}
		if warning >= 0 {
			t.warning = warning
		}
	}
}

// OnTick registers a callback invoked after every tick.
func OnTick(fn func(domain.TimerState)) TimerOption {
	return func(t *ExamTimer) { t.onTick = fn }
}

// OnExpired registers the expiration callback.
func OnExpired(fn func()) TimerOption {
	return func(t *ExamTimer) { t.onExpired = fn }
}

func NewExamTimer(store StartTimeStore, opts ...TimerOption) *ExamTimer {
	t := &ExamTimer{
		store:    store,
		now:      time.Now,
		interval: defaultTickInterval,
		duration: DefaultExamDuration,
		warning:  DefaultWarningThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.remaining = t.duration
	return t
}

// Activate reads the persisted start time and starts counting down. Without a
// start time the full duration is used.
func (t *ExamTimer) Activate(ctx context.Context) error {
	start, ok, err := t.store.StartTime(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if !ok {
		start = now
	}
	t.anchor = start
	t.remaining = t.remainingAt(now)
	t.expired = false
	t.active = true
	t.restartLocked()
	return nil
}

// Deactivate stops the countdown and freezes the remaining time.
func (t *ExamTimer) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.stopLocked()
}

// ResetTimer clears the persisted session, restores the full duration and
// re-arms expiration.
func (t *ExamTimer) ResetTimer(ctx context.Context) error {
	err := t.store.Clear(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchor = t.now()
	t.remaining = t.duration
	t.expired = false
	if t.active {
		t.restartLocked()
	}
	return err
}

// Close tears down the tick goroutine.
func (t *ExamTimer) Close() {
	t.Deactivate()
}

// Tick refreshes the countdown once. The background goroutine calls it every
// interval; it is exported so callers can drive the timer manually.
func (t *ExamTimer) Tick() {
	t.mu.Lock()
	gen := t.generation
	t.mu.Unlock()
	t.tick(gen)
}

// State returns the current countdown state.
func (t *ExamTimer) State() domain.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Remaining returns the time left, in whole seconds.
func (t *ExamTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *ExamTimer) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Expired reports whether no time is left.
func (t *ExamTimer) Expired() bool {
	return t.Remaining() <= 0
}

// tick returns true when the goroutine that called it should stop.
func (t *ExamTimer) tick(gen uint64) bool {
	t.mu.Lock()
	if gen != t.generation || !t.active {
		t.mu.Unlock()
		return true
	}
	t.remaining = t.remainingAt(t.now())
	fire := false
	done := false
	if t.remaining <= 0 {
		t.remaining = 0
		done = true
		if !t.expired {
			t.expired = true
			fire = true
		}
	}
	state := t.stateLocked()
	onTick, onExpired := t.onTick, t.onExpired
	t.mu.Unlock()

	if onTick != nil {
		onTick(state)
	}
	if fire && onExpired != nil {
		onExpired()
	}
	return done
}

func (t *ExamTimer) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.tick(gen) {
				return
			}
		}
	}
}

// restartLocked replaces the tick goroutine; stale ones see a newer
// generation and exit without touching state.
func (t *ExamTimer) restartLocked() {
	t.stopLocked()
	if !t.active || t.remaining <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(ctx, t.generation)
}

func (t *ExamTimer) stopLocked() {
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *ExamTimer) remainingAt(now time.Time) time.Duration {
	elapsed := now.Sub(t.anchor).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := t.duration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining.Truncate(time.Second)
}

func (t *ExamTimer) stateLocked() domain.TimerState {
	return domain.TimerState{
		Active:           t.active,
		RemainingSeconds: int(t.remaining / time.Second),
		Formatted:        FormatRemaining(t.remaining),
		Warning:          t.remaining > 0 && t.remaining <= t.warning,
		Expired:          t.remaining <= 0,
	}
}

// FormatRemaining renders a countdown as MM:SS. Minutes are not capped at 59.
func FormatRemaining(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
