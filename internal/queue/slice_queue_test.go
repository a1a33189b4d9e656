package queue

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type msgItem struct {
	data string
}

func TestSliceQueue(t *testing.T) {
	assert := assert.New(t)
	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())
		item, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(item)
		item, ok = q.Peek()
		assert.False(ok)
		assert.Nil(item)
		assert.Empty(q.Items())
	})

	t.Run("Enqueue and Dequeue", func(t *testing.T) {
		q := NewSliceQueue[*msgItem](1)

		item1 := &msgItem{"data1"}
		q.Enqueue(item1)
		assert.False(q.IsEmpty())
		assert.Equal(1, q.Length())

		item2 := &msgItem{"data2"}
		q.Enqueue(item2)
		assert.Equal(2, q.Length())
		assert.Equal([]*msgItem{item1, item2}, q.Items())

		got, ok := q.Dequeue()
		assert.True(ok)
		assert.Same(item1, got)
		assert.Equal(1, q.Length())

		got, ok = q.Dequeue()
		assert.True(ok)
		assert.Same(item2, got)
		assert.True(q.IsEmpty())

		_, ok = q.Dequeue()
		assert.False(ok)
	})

	t.Run("Peek", func(t *testing.T) {
		q := NewSliceQueue[string](1)

		q.Enqueue("a")
		head, _ := q.Peek()
		assert.Equal("a", head)
		assert.Equal(1, q.Length()) // Length should not change after peek

		q.Enqueue("b")
		head, _ = q.Peek()
		assert.Equal("a", head)

		q.Dequeue()
		head, _ = q.Peek()
		assert.Equal("b", head)
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewSliceQueue[int](4)
		for i := range 3 {
			q.Enqueue(i)
		}
		q.Reset()
		assert.True(q.IsEmpty())

		q.Enqueue(7)
		assert.Equal([]int{7}, q.Items())
	})

	t.Run("Concurrency", func(t *testing.T) {
		var mu sync.Mutex
		q := NewSliceQueue[string](1)

		var wg sync.WaitGroup
		for i := 0; i < 1000; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				mu.Lock()
				q.Enqueue(strconv.Itoa(i))
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		assert.Equal(1000, q.Length())
	})
}

func TestBoundedQueue(t *testing.T) {
	q := NewBoundedQueue[string](3)

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		q.Enqueue(s)
	}
	assert.Equal(t, 3, q.Length())
	assert.Equal(t, []string{"c", "d", "e"}, q.Items())

	head, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, "c", head)

	q.Enqueue("f")
	q.Enqueue("g")
	assert.Equal(t, []string{"e", "f", "g"}, q.Items())

	single := NewBoundedQueue[int](0)
	single.Enqueue(1)
	single.Enqueue(2)
	assert.Equal(t, []int{2}, single.Items())
}
