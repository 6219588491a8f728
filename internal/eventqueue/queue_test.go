package eventqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"screenforge/internal/screen"
	"screenforge/internal/tester"
)

func ev(id string) screen.UserEvent {
	return screen.UserEvent{ScreenID: "s", EventID: id}
}

type result struct {
	events []screen.UserEvent
	err    error
}

func getAsync(ctx context.Context, q *Queue) <-chan result {
	out := make(chan result, 1)
	go func() {
		events, err := q.Get(ctx)
		out <- result{events, err}
	}()
	return out
}

func TestGet_ReturnsBufferedInOrder(t *testing.T) {
	q := New()
	q.Add(ev("a"), ev("b"))
	q.Add(ev("c"))

	got, err := q.Get(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, got, []screen.UserEvent{ev("a"), ev("b"), ev("c")})
	tester.Eq(t, q.Len(), 0)
}

func TestGet_BlocksUntilAdd(t *testing.T) {
	q := New()
	res := getAsync(context.Background(), q)
	tester.NoErr(t, q.AwaitConsumer(context.Background()))
	tester.Pending(t, res, 20*time.Millisecond, "get before add")

	q.Add(ev("x"))
	r := tester.Receive(t, res, time.Second, "get after add")
	tester.NoErr(t, r.err)
	tester.Eq(t, r.events, []screen.UserEvent{ev("x")})
	tester.True(t, !q.Waiting())
}

func TestGet_EachEventDeliveredOnce(t *testing.T) {
	q := New()
	q.Add(ev("a"))
	first, err := q.Get(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, len(first), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Get(ctx)
	tester.ErrIs(t, err, context.DeadlineExceeded)
}

func TestGet_SecondConsumerRejected(t *testing.T) {
	q := New()
	res := getAsync(context.Background(), q)
	tester.NoErr(t, q.AwaitConsumer(context.Background()))

	_, err := q.Get(context.Background())
	tester.ErrIs(t, err, ErrConsumerWaiting)

	q.Add(ev("a"))
	r := tester.Receive(t, res, time.Second, "first consumer")
	tester.NoErr(t, r.err)
	tester.Eq(t, r.events, []screen.UserEvent{ev("a")})
}

func TestGet_CancelKeepsLaterEvents(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	res := getAsync(ctx, q)
	tester.NoErr(t, q.AwaitConsumer(context.Background()))
	cancel()

	r := tester.Receive(t, res, time.Second, "cancelled get")
	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", r.err)
	}
	tester.True(t, !q.Waiting())

	q.Add(ev("late"))
	got, err := q.Get(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, got, []screen.UserEvent{ev("late")})
}

func TestAwaitConsumer_RespectsContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tester.ErrIs(t, q.AwaitConsumer(ctx), context.DeadlineExceeded)
}

func TestAwaitConsumer_IgnoresNonBlockingGet(t *testing.T) {
	q := New()
	q.Add(ev("a"))
	_, err := q.Get(context.Background())
	tester.NoErr(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tester.ErrIs(t, q.AwaitConsumer(ctx), context.DeadlineExceeded)
}

func TestAdd_Empty(t *testing.T) {
	q := New()
	res := getAsync(context.Background(), q)
	tester.NoErr(t, q.AwaitConsumer(context.Background()))
	q.Add()
	tester.Pending(t, res, 20*time.Millisecond, "get after empty add")
	q.Add(ev("a"))
	tester.Receive(t, res, time.Second, "get")
}
