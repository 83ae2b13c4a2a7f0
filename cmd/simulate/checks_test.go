package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckQueueNumbers(t *testing.T) {
	assert.NoError(t, checkQueueNumbers(nil))
	assert.NoError(t, checkQueueNumbers([]int{3, 1, 2, 5, 4}))
	assert.NoError(t, checkQueueNumbers([]int{17, 18, 16}), "a run need not start at 1")

	assert.ErrorContains(t, checkQueueNumbers([]int{1, 2, 2, 3}), "assigned twice")
	assert.ErrorContains(t, checkQueueNumbers([]int{1, 2, 4}), "gap")
}

func TestCheckSingleWinner(t *testing.T) {
	assert.NoError(t, checkSingleWinner(1, 0))
	assert.Error(t, checkSingleWinner(0, 0))
	assert.Error(t, checkSingleWinner(2, 0))
	assert.Error(t, checkSingleWinner(1, 1))
}

func TestOperationMetrics_Stats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 100; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%10 != 0, i%10 == 0)
	}

	avg, min, max, p50, p95 := om.Stats()
	assert.Equal(t, int64(100), om.Total)
	assert.Equal(t, int64(90), om.Success)
	assert.Equal(t, int64(10), om.Conflict)
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, 100*time.Millisecond, max)
	assert.Equal(t, 51*time.Millisecond, p50)
	assert.Equal(t, 96*time.Millisecond, p95)
	assert.Equal(t, 50500*time.Microsecond, avg)
}
