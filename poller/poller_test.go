package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	progress  []int
	terminal  []int
	timeouts  []error
	done      int
	doneLast  bool
	callOrder []string
}

func (r *recorder) hooks() Hooks[int] {
	return Hooks[int]{
		OnProgress: func(attempt, max int, v int) {
			r.progress = append(r.progress, attempt)
			r.callOrder = append(r.callOrder, "progress")
		},
		OnTerminal: func(v int) {
			r.terminal = append(r.terminal, v)
			r.callOrder = append(r.callOrder, "terminal")
		},
		OnTimeout: func(err error) {
			r.timeouts = append(r.timeouts, err)
			r.callOrder = append(r.callOrder, "timeout")
		},
		OnDone: func(Outcome[int]) {
			r.done++
			r.callOrder = append(r.callOrder, "done")
		},
	}
}

func sequence(values ...int) func(context.Context) (int, error) {
	i := 0
	return func(context.Context) (int, error) {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v, nil
	}
}

func isTwo(v int) bool { return v == 2 }

func TestPresets(t *testing.T) {
	assert.Equal(t, 5*time.Second, TaskConfig().Interval)
	assert.Equal(t, 60, TaskConfig().MaxAttempts)
	assert.Equal(t, 5*time.Second, PaymentConfig().Interval)
	assert.Equal(t, 120, PaymentConfig().MaxAttempts)
}

func TestTerminalOnFourthAttempt(t *testing.T) {
	clock := NewInstantClock(time.Unix(0, 0))
	cfg := TaskConfig()
	cfg.Clock = clock
	r := &recorder{}
	calls := 0
	seq := sequence(0, 1, 1, 2)
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return seq(ctx)
	}

	out := New(cfg, fetch, isTwo, r.hooks()).Run(context.Background())

	assert.Equal(t, StatusTerminal, out.Status)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 2, out.Value)
	assert.Equal(t, []int{1, 2, 3}, r.progress)
	assert.Equal(t, []int{2}, r.terminal)
	assert.Empty(t, r.timeouts)
	assert.Equal(t, []string{"progress", "progress", "progress", "terminal", "done"}, r.callOrder)

	// first probe only after one full interval
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}, clock.Waits())
}

func TestTimeoutAfterMaxAttempts(t *testing.T) {
	clock := NewInstantClock(time.Unix(0, 0))
	probes := 0
	fetch := func(context.Context) (int, error) {
		probes++
		return 1, nil
	}
	r := &recorder{}
	out := New(Config{Interval: time.Second, MaxAttempts: 60, Clock: clock}, fetch, isTwo, r.hooks()).Run(context.Background())

	assert.Equal(t, StatusTimedOut, out.Status)
	assert.Equal(t, 60, probes)
	assert.Equal(t, 60, out.Attempts)
	require.Len(t, r.timeouts, 1)
	assert.NoError(t, r.timeouts[0])
	assert.Len(t, r.progress, 59)
	assert.Equal(t, 1, r.done)
	assert.Equal(t, "done", r.callOrder[len(r.callOrder)-1])
}

func TestFetchErrorsAreNotTerminal(t *testing.T) {
	clock := NewInstantClock(time.Unix(0, 0))
	boom := errors.New("网络错误")
	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, boom
		}
		return 2, nil
	}
	r := &recorder{}
	out := New(Config{Interval: time.Second, MaxAttempts: 5, Clock: clock}, fetch, isTwo, r.hooks()).Run(context.Background())

	assert.Equal(t, StatusTerminal, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.NoError(t, out.LastErr)
	assert.Empty(t, r.progress)
}

func TestTimeoutCarriesLastError(t *testing.T) {
	boom := errors.New("查询失败")
	fetch := func(context.Context) (int, error) { return 0, boom }
	r := &recorder{}
	out := New(Config{Interval: time.Second, MaxAttempts: 3, Clock: NewInstantClock(time.Unix(0, 0))}, fetch, isTwo, r.hooks()).Run(context.Background())

	assert.Equal(t, StatusTimedOut, out.Status)
	require.Len(t, r.timeouts, 1)
	assert.ErrorIs(t, r.timeouts[0], boom)
}

func TestCancelledBeforeFirstProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	probes := 0
	fetch := func(context.Context) (int, error) {
		probes++
		return 0, nil
	}
	r := &recorder{}
	out := New(Config{Interval: time.Second, MaxAttempts: 3, Clock: NewInstantClock(time.Unix(0, 0))}, fetch, isTwo, r.hooks()).Run(ctx)

	assert.Equal(t, StatusCancelled, out.Status)
	assert.Zero(t, probes)
	assert.Empty(t, r.timeouts)
	assert.Equal(t, 1, r.done)
}

func TestCancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	probes := 0
	fetch := func(context.Context) (int, error) {
		probes++
		if probes == 2 {
			cancel()
		}
		return 1, nil
	}
	r := &recorder{}
	out := New(Config{Interval: time.Second, MaxAttempts: 10, Clock: NewInstantClock(time.Unix(0, 0))}, fetch, isTwo, r.hooks()).Run(ctx)

	assert.Equal(t, StatusCancelled, out.Status)
	assert.Equal(t, 2, probes)
	assert.Empty(t, r.timeouts)
	assert.Empty(t, r.terminal)
}

func TestRealClockWaits(t *testing.T) {
	start := time.Now()
	out := New(Config{Interval: 10 * time.Millisecond, MaxAttempts: 2}, sequence(1, 2), isTwo, Hooks[int]{}).Run(context.Background())
	assert.Equal(t, StatusTerminal, out.Status)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
