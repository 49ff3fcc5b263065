package batch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chute/internal/batch"
)

func addItems(t *testing.T, q *batch.Queue[string, string], ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := q.Add(id, id, id); err != nil {
			t.Fatalf("Add(%q): %v", id, err)
		}
	}
}

func TestProcessCompletesAllItems(t *testing.T) {
	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 2, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "b", "c", "d", "e")

	summary, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		return strings.ToUpper(data), nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Completed != 5 || summary.Failed != 0 || summary.Cancelled != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, item := range summary.Items {
		if item.Status != batch.StatusCompleted {
			t.Fatalf("item %q status = %s", item.ID, item.Status)
		}
		if item.Result != strings.ToUpper(item.Data) {
			t.Fatalf("item %q result = %q", item.ID, item.Result)
		}
	}
	if got := q.State(); got != batch.StateDrained {
		t.Fatalf("state = %s, want %s", got, batch.StateDrained)
	}
}

func TestConcurrencyBoundIsNeverExceeded(t *testing.T) {
	const bound = 2
	var live, peak atomic.Int32

	q, err := batch.New[int, int](batch.Config[int, int]{Concurrency: bound, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 8; i++ {
		if err := q.Add(fmt.Sprintf("item-%d", i), "", i); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	summary, err := q.Process(context.Background(), func(ctx context.Context, n int) (int, error) {
		cur := live.Add(1)
		defer live.Add(-1)
		for {
			prev := peak.Load()
			if cur <= prev || peak.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return n * 2, nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Completed != 8 {
		t.Fatalf("completed = %d, want 8", summary.Completed)
	}
	if got := peak.Load(); got > bound {
		t.Fatalf("observed %d simultaneous items, bound is %d", got, bound)
	}
}

func TestSingleSlotDispatchesFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string

	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 1, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "first", "second", "third", "fourth")

	if _, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		mu.Lock()
		order = append(order, data)
		mu.Unlock()
		return data, nil
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []string{"first", "second", "third", "fourth"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestFailureIsolationContinuesOtherItems(t *testing.T) {
	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 2, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "bad", "c", "d")

	summary, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		if data == "bad" {
			return "", errors.New("unreadable input")
		}
		return data, nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Completed != 3 || summary.Failed != 1 || summary.Cancelled != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, item := range summary.Items {
		if item.ID == "bad" {
			if item.Status != batch.StatusError || !strings.Contains(item.ErrorMessage, "unreadable input") {
				t.Fatalf("failed item not recorded: %+v", item)
			}
			continue
		}
		if item.Status != batch.StatusCompleted {
			t.Fatalf("item %q status = %s", item.ID, item.Status)
		}
	}
}

func TestFailFastCancelsPendingItems(t *testing.T) {
	var invocations atomic.Int32

	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 1, ContinueOnError: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "bad", "b", "c", "d")

	summary, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		invocations.Add(1)
		return "", errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := invocations.Load(); got != 1 {
		t.Fatalf("processor invoked %d times, want 1", got)
	}
	if summary.Failed != 1 || summary.Cancelled != 3 || summary.Completed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestCancelStopsDispatchPromptly(t *testing.T) {
	const total = 10
	completed := make(chan string, total)

	q, err := batch.New[int, int](batch.Config[int, int]{
		Concurrency:     3,
		ContinueOnError: true,
		OnItemComplete: func(item *batch.Item[int, int]) {
			if item.Status == batch.StatusCompleted {
				completed <- item.ID
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < total; i++ {
		if err := q.Add(fmt.Sprintf("item-%d", i), "", i); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	type result struct {
		summary *batch.Summary[int, int]
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := q.Process(context.Background(), func(ctx context.Context, n int) (int, error) {
			if n < 2 {
				return n, nil
			}
			<-ctx.Done()
			return 0, ctx.Err()
		})
		done <- result{summary, err}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-completed:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for completions")
		}
	}
	q.Cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not settle after cancel")
	}
	if res.err != nil {
		t.Fatalf("Process: %v", res.err)
	}
	if res.summary.Completed != 2 || res.summary.Cancelled != 8 || res.summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", res.summary)
	}
	if got := q.State(); got != batch.StateCancelled {
		t.Fatalf("state = %s, want %s", got, batch.StateCancelled)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 1, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a")

	if _, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		return data, nil
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	q.Cancel()
	q.Cancel()
	if got := q.State(); got != batch.StateDrained {
		t.Fatalf("cancel after drain changed state to %s", got)
	}
}

func TestCancelBeforeProcessCancelsEverything(t *testing.T) {
	var invocations atomic.Int32

	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 2, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "b", "c")

	q.Cancel()
	summary, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		invocations.Add(1)
		return data, nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := invocations.Load(); got != 0 {
		t.Fatalf("processor invoked %d times after cancel", got)
	}
	if summary.Cancelled != 3 || summary.Completed != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestPauseStopsNewDispatchAndResumeContinues(t *testing.T) {
	started := make(chan string, 3)
	releaseFirst := make(chan struct{})

	q, err := batch.New[string, string](batch.Config[string, string]{
		Concurrency:     1,
		ContinueOnError: true,
		OnItemStart: func(item *batch.Item[string, string]) {
			started <- item.ID
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "b", "c")

	type result struct {
		summary *batch.Summary[string, string]
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
			if data == "a" {
				<-releaseFirst
			}
			return data, nil
		})
		done <- result{summary, err}
	}()

	select {
	case id := <-started:
		if id != "a" {
			t.Fatalf("first start = %q, want %q", id, "a")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first dispatch")
	}

	q.Pause()
	close(releaseFirst)

	select {
	case id := <-started:
		t.Fatalf("item %q dispatched while paused", id)
	case <-time.After(100 * time.Millisecond):
	}
	if got := q.State(); got != batch.StatePaused {
		t.Fatalf("state = %s, want %s", got, batch.StatePaused)
	}

	q.Resume()
	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not settle after resume")
	}
	if res.err != nil {
		t.Fatalf("Process: %v", res.err)
	}
	if res.summary.Completed != 3 {
		t.Fatalf("unexpected summary: %+v", res.summary)
	}
}

func TestProgressIsMonotonicAndReachesTotal(t *testing.T) {
	var progress [][2]int

	q, err := batch.New[string, string](batch.Config[string, string]{
		Concurrency:     2,
		ContinueOnError: true,
		OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "bad", "c", "d", "e")

	if _, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		if data == "bad" {
			return "", errors.New("boom")
		}
		return data, nil
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(progress) != 5 {
		t.Fatalf("progress fired %d times, want 5", len(progress))
	}
	prev := 0
	for _, p := range progress {
		if p[0] < prev {
			t.Fatalf("progress regressed: %v", progress)
		}
		if p[1] != 5 {
			t.Fatalf("total = %d, want 5", p[1])
		}
		prev = p[0]
	}
	if prev != 5 {
		t.Fatalf("final progress = %d, want 5", prev)
	}
}

func TestObserversFireOncePerItem(t *testing.T) {
	starts := make(map[string]int)
	completes := make(map[string]int)

	q, err := batch.New[string, string](batch.Config[string, string]{
		Concurrency:     2,
		ContinueOnError: true,
		OnItemStart: func(item *batch.Item[string, string]) {
			starts[item.ID]++
		},
		OnItemComplete: func(item *batch.Item[string, string]) {
			completes[item.ID]++
			if !item.Status.Terminal() {
				t.Errorf("OnItemComplete with non-terminal status %s", item.Status)
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "b", "c", "d")

	if _, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		return data, nil
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		if starts[id] != 1 {
			t.Fatalf("OnItemStart for %q fired %d times", id, starts[id])
		}
		if completes[id] != 1 {
			t.Fatalf("OnItemComplete for %q fired %d times", id, completes[id])
		}
	}
}

func TestExternalContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 4)

	q, err := batch.New[string, string](batch.Config[string, string]{
		Concurrency:     2,
		ContinueOnError: true,
		OnItemStart: func(item *batch.Item[string, string]) {
			started <- struct{}{}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "b", "c", "d")

	type result struct {
		summary *batch.Summary[string, string]
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := q.Process(ctx, func(ctx context.Context, data string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		done <- result{summary, err}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}
	cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not settle after context cancellation")
	}
	if res.err != nil {
		t.Fatalf("Process: %v", res.err)
	}
	if res.summary.Cancelled != 4 || res.summary.Completed != 0 || res.summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", res.summary)
	}
}

func TestProcessorPanicIsCapturedPerItem(t *testing.T) {
	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 1, ContinueOnError: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a", "explodes", "c")

	summary, err := q.Process(context.Background(), func(ctx context.Context, data string) (string, error) {
		if data == "explodes" {
			panic("bad state")
		}
		return data, nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, item := range summary.Items {
		if item.ID == "explodes" && !strings.Contains(item.ErrorMessage, "panic") {
			t.Fatalf("panic not recorded: %+v", item)
		}
	}
}

func TestConfigurationAndUsageErrors(t *testing.T) {
	if _, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 0}); !errors.Is(err, batch.ErrInvalidConcurrency) {
		t.Fatalf("New with zero concurrency: %v", err)
	}

	q, err := batch.New[string, string](batch.Config[string, string]{Concurrency: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addItems(t, q, "a")
	if err := q.Add("a", "a", "a"); !errors.Is(err, batch.ErrDuplicateID) {
		t.Fatalf("duplicate Add: %v", err)
	}

	if _, err := q.Process(context.Background(), nil); !errors.Is(err, batch.ErrNilProcessor) {
		t.Fatalf("nil processor: %v", err)
	}

	echo := func(ctx context.Context, data string) (string, error) { return data, nil }
	if _, err := q.Process(context.Background(), echo); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := q.Add("b", "b", "b"); !errors.Is(err, batch.ErrAlreadyStarted) {
		t.Fatalf("Add after start: %v", err)
	}
	if _, err := q.Process(context.Background(), echo); !errors.Is(err, batch.ErrAlreadyProcessed) {
		t.Fatalf("second Process: %v", err)
	}
}
