package lane

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-iocore/lifecycle"
	"github.com/stretchr/testify/require"
)

func TestRun_HappyPath(t *testing.T) {
	l := New(Config{WorkerCount: 2, QueueCapacity: 4})
	defer l.Shutdown()

	result, err := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Outcome)
	require.Equal(t, 42, result.Value)
}

func TestRun_DomainErrorSurfacedAsFailure(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 4})
	defer l.Shutdown()

	boom := errors.New("boom")
	result, err := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		return 0, boom
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, result.Outcome)
	require.ErrorIs(t, result.Err, boom)
}

func TestRun_PanicBecomesPanicError(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 4})
	defer l.Shutdown()

	result, err := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		panic("kaboom")
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, result.Outcome)
	var panicErr *PanicError
	require.ErrorAs(t, result.Err, &panicErr)
	require.Equal(t, "kaboom", panicErr.Value)
}

func TestRun_QueueFullFailFast(t *testing.T) {
	// one worker, capacity 1, and no admission waiters: a second submission
	// while the first occupies the only worker and the queue holds one more
	// must reject immediately.
	release := make(chan struct{})
	l := New(Config{WorkerCount: 1, QueueCapacity: 1, Backpressure: FailFast})
	defer l.Shutdown()

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	// give the worker a chance to dequeue the first job so the queue has a
	// free slot for the second submission to occupy.
	time.Sleep(20 * time.Millisecond)

	// fill the queue.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	result, err := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, result.Outcome)
	require.ErrorIs(t, result.Err, ErrQueueFull)

	close(release)
	wg.Wait()
}

func TestRun_SuspendedAdmissionIsGrantedOnceSlotFrees(t *testing.T) {
	// a single worker and a one-slot queue: the first submission occupies
	// the worker, the second fills the queue, and only the third is
	// actually forced to suspend as an admission waiter.
	release := make(chan struct{})
	l := New(Config{WorkerCount: 1, QueueCapacity: 1, Backpressure: Suspend, AdmissionWaitersCapacity: 2})
	defer l.Shutdown()

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	time.Sleep(20 * time.Millisecond)

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 2, nil
	})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, l.Stats().QueueDepth)

	done := make(chan Result[int], 1)
	go func() {
		result, _ := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
			return 3, nil
		})
		done <- result
	}()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, l.Stats().AdmissionWaiters)

	close(release)
	select {
	case result := <-done:
		require.Equal(t, OutcomeSuccess, result.Outcome)
		require.Equal(t, 3, result.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("suspended submission was never admitted")
	}
}

func TestRun_DeadlineAtAdmissionElapses(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 1, Backpressure: Suspend, AdmissionWaitersCapacity: 2})
	defer l.Shutdown()

	release := make(chan struct{})
	defer close(release)

	// one job occupies the worker, a second fills the only queue slot, so
	// the submission under test is genuinely forced to suspend.
	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, l.Stats().QueueDepth)

	result, err := Run(context.Background(), l, DeadlineAt(time.Now().Add(30*time.Millisecond)), func(context.Context) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, result.Outcome)
	require.ErrorIs(t, result.Err, ErrDeadlineExceeded)
}

func TestRun_AmbientCancellationWins(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 1, Backpressure: Suspend, AdmissionWaitersCapacity: 2})
	defer l.Shutdown()

	release := make(chan struct{})
	defer close(release)

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, l.Stats().QueueDepth)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result[int], 1)
	go func() {
		result, _ := Run(ctx, l, DeadlineNone(), func(context.Context) (int, error) {
			return 0, nil
		})
		done <- result
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		require.Equal(t, OutcomeCancelled, result.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation was never observed")
	}
}

func TestRun_AmbientDeadlineIsLifecycleTimeout(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 4})
	defer l.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	_, err := Run(ctx, l, DeadlineNone(), func(context.Context) (int, error) {
		return 0, nil
	})
	var lifeErr lifecycle.Error[error]
	require.ErrorAs(t, err, &lifeErr)
	require.Equal(t, lifecycle.KindTimeout, lifeErr.Kind())
}

func TestRun_CompletionWinsOverLateCancellation(t *testing.T) {
	// a job that finishes essentially immediately, raced against a context
	// cancelled at roughly the same moment: every run must resolve without
	// an error, to either OutcomeCancelled or OutcomeSuccess, and a success
	// must carry the job's real value.
	l := New(Config{WorkerCount: 1, QueueCapacity: 4})
	defer l.Shutdown()

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(time.Microsecond)
			cancel()
		}()
		result, err := Run(ctx, l, DeadlineNone(), func(context.Context) (int, error) {
			return 7, nil
		})
		require.NoError(t, err)
		require.Contains(t, []Outcome{OutcomeSuccess, OutcomeCancelled}, result.Outcome)
		if result.Outcome == OutcomeSuccess {
			require.Equal(t, 7, result.Value)
		}
	}
}

func TestRun_AfterShutdownReturnsShutdownInProgress(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 4})
	l.Shutdown()

	_, err := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		return 0, nil
	})
	var lifeErr lifecycle.Error[error]
	require.ErrorAs(t, err, &lifeErr)
	require.Equal(t, lifecycle.KindShutdownInProgress, lifeErr.Kind())
}

func TestRun_SuspendedAdmissionWokenByShutdown(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	l := New(Config{WorkerCount: 1, QueueCapacity: 1, Backpressure: Suspend, AdmissionWaitersCapacity: 2})

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, l.Stats().QueueDepth)

	done := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
			return 0, nil
		})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, l.Stats().AdmissionWaiters)

	go l.Shutdown()

	select {
	case err := <-done:
		var lifeErr lifecycle.Error[error]
		require.ErrorAs(t, err, &lifeErr)
		require.Equal(t, lifecycle.KindShutdownInProgress, lifeErr.Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("suspended submission was never woken by shutdown")
	}
}

func TestLane_StatsReportsCapacityAndInFlight(t *testing.T) {
	l := New(Config{WorkerCount: 1, QueueCapacity: 4})
	defer l.Shutdown()

	release := make(chan struct{})
	defer close(release)

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	time.Sleep(20 * time.Millisecond)

	stats := l.Stats()
	require.Equal(t, 4, stats.QueueCapacity)
	require.Equal(t, 1, stats.InFlight)
}

func TestLane_OverloadHandlerInvokedOnRejection(t *testing.T) {
	var mu sync.Mutex
	var events []OverloadEvent
	l := New(Config{WorkerCount: 1, QueueCapacity: 1, Backpressure: FailFast}, WithOverloadHandler(func(e OverloadEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))
	defer l.Shutdown()

	release := make(chan struct{})

	go Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	time.Sleep(20 * time.Millisecond)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	_, _ = Run(context.Background(), l, DeadlineNone(), func(context.Context) (int, error) {
		return 0, nil
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	require.ErrorIs(t, events[0].Err, ErrQueueFull)

	close(release)
	wg.Wait()
}

func TestInlineRun_RunsSynchronously(t *testing.T) {
	l := NewInlineLane()
	result, err := InlineRun(context.Background(), l, func(context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Outcome)
	require.Equal(t, "done", result.Value)
}

func TestInlineRun_AlreadyCancelledSkipsBody(t *testing.T) {
	l := NewInlineLane()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	result, err := InlineRun(ctx, l, func(context.Context) (int, error) {
		ran = true
		return 0, nil
	})
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, OutcomeCancelled, result.Outcome)
}

func TestInlineRun_AfterShutdown(t *testing.T) {
	l := NewInlineLane()
	l.Shutdown()

	_, err := InlineRun(context.Background(), l, func(context.Context) (int, error) {
		return 0, nil
	})
	var lifeErr lifecycle.Error[error]
	require.ErrorAs(t, err, &lifeErr)
	require.Equal(t, lifecycle.KindShutdownInProgress, lifeErr.Kind())
}
