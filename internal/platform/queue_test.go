package platform_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/dmksnnk/snakelink/internal/platform"
)

func TestQueue(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		q := platform.NewQueue[string]()
		q.Push("a")
		q.Push("b")
		q.Push("c")

		for _, want := range []string{"a", "b", "c"} {
			got, ok := q.Pop()
			if !ok {
				t.Fatalf("expected value %q, queue is empty", want)
			}
			if got != want {
				t.Errorf("want: %q, got: %q", want, got)
			}
		}

		if _, ok := q.Pop(); ok {
			t.Error("expected empty queue")
		}
	})

	t.Run("drain", func(t *testing.T) {
		q := platform.NewQueue[int]()
		for i := range 5 {
			q.Push(i)
		}

		got := q.Drain()
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Errorf("unexpected drain result: %v", got)
		}
		if q.Len() != 0 {
			t.Errorf("expected empty queue after drain, got len %d", q.Len())
		}
		if got := q.Drain(); len(got) != 0 {
			t.Errorf("expected nothing on second drain, got: %v", got)
		}
	})

	t.Run("concurrent producer and consumer", func(t *testing.T) {
		q := platform.NewQueue[int]()
		const total = 10000

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range total {
				q.Push(i)
			}
		}()

		got := make([]int, 0, total)
		for len(got) < total {
			if v, ok := q.Pop(); ok {
				got = append(got, v)
			}
		}
		wg.Wait()

		for i, v := range got {
			if v != i {
				t.Fatalf("out of order at %d: got %d", i, v)
			}
		}
	})
}
