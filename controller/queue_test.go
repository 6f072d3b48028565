package controller

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsTasksInOrder(t *testing.T) {
	q := NewQueue(16, discardLogger())
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, q.Submit(func() { order = append(order, i) }))
	}
	q.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestQueueSurvivesPanics(t *testing.T) {
	q := NewQueue(4, discardLogger())
	var ran atomic.Bool
	require.NoError(t, q.Submit(func() { panic("boom") }))
	require.NoError(t, q.Submit(func() { ran.Store(true) }))
	q.Close()

	assert.True(t, ran.Load())
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(1, discardLogger())
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Submit(func() {}), ErrQueueClosed)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, discardLogger())
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.NoError(t, q.Submit(func() {}))
	assert.ErrorIs(t, q.Submit(func() {}), ErrQueueFull)

	close(block)
	q.Close()
}
