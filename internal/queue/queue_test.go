package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Push(t *testing.T) {
	q := New[int]()
	assert.True(t, q.Empty())

	assert.Zero(t, q.Push(1, 2, 3))
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Empty())
	assert.Equal(t, []int{1, 2, 3}, q.Snapshot())
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[string](3)

	assert.Zero(t, q.Push("a", "b"))
	assert.Equal(t, 2, q.Push("c", "d", "e"))

	assert.Equal(t, []string{"c", "d", "e"}, q.Snapshot())
	assert.Equal(t, uint64(2), q.Dropped())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	taken := q.GetAndEmpty()
	q.Push(3)

	assert.Zero(t, q.Requeue(taken...))
	assert.Equal(t, []int{1, 2, 3}, q.Snapshot())
	assert.Zero(t, q.Requeue())
}

func TestQueue_RequeueRespectsBound(t *testing.T) {
	q := NewBounded[int](2)
	q.Push(3)
	assert.Equal(t, 1, q.Requeue(1, 2))
	assert.Equal(t, []int{2, 3}, q.Snapshot())
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[int]()
	assert.Empty(t, q.GetAndEmpty())

	q.Push(4, 5)
	assert.Equal(t, []int{4, 5}, q.GetAndEmpty())
	assert.True(t, q.Empty())

	q.Push(6)
	assert.Equal(t, []int{6}, q.Snapshot())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n*100 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())

	all := q.GetAndEmpty()
	require.Len(t, all, 1000)
	assert.True(t, q.Empty())
}
