package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func entryIn(status Status) Entry {
	return Entry{
		ID:          uuid.New(),
		QueueNumber: 1,
		Status:      status,
		CheckInTime: fixedNow.Add(-time.Hour),
	}
}

func TestApplyTransition_WaitingToServingRejected(t *testing.T) {
	_, err := ApplyTransition(entryIn(StatusWaiting), StatusServing, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyTransition_CallSetsCalledTime(t *testing.T) {
	in := entryIn(StatusWaiting)

	out, err := ApplyTransition(in, StatusCalled, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCalled, out.Status)
	require.NotNil(t, out.CalledTime)
	assert.Equal(t, fixedNow, *out.CalledTime)
	assert.Nil(t, out.CompletedTime)

	// input untouched
	assert.Equal(t, StatusWaiting, in.Status)
	assert.Nil(t, in.CalledTime)
}

func TestApplyTransition_NoShowCancels(t *testing.T) {
	out, err := ApplyTransition(entryIn(StatusCalled), StatusCancelled, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Status)
	require.NotNil(t, out.CompletedTime)
	assert.Equal(t, fixedNow, *out.CompletedTime)
}

func TestApplyTransition_ServingSetsNoTimestamp(t *testing.T) {
	in := entryIn(StatusCalled)
	called := fixedNow.Add(-5 * time.Minute)
	in.CalledTime = &called

	out, err := ApplyTransition(in, StatusServing, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusServing, out.Status)
	assert.Equal(t, called, *out.CalledTime)
	assert.Nil(t, out.CompletedTime)
}

func TestApplyTransition_CompleteFromServing(t *testing.T) {
	out, err := ApplyTransition(entryIn(StatusServing), StatusCompleted, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, out.CompletedTime)
}

func TestApplyTransition_TerminalStatesRejectEverything(t *testing.T) {
	all := []Status{StatusWaiting, StatusCalled, StatusServing, StatusCompleted, StatusCancelled}
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range all {
			_, err := ApplyTransition(entryIn(from), to, fixedNow)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusWaiting, StatusCalled}:    true,
		{StatusCalled, StatusServing}:    true,
		{StatusCalled, StatusCancelled}:  true,
		{StatusServing, StatusCompleted}: true,
	}
	all := []Status{StatusWaiting, StatusCalled, StatusServing, StatusCompleted, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestPartitionByStatus_SortsByQueueNumber(t *testing.T) {
	mk := func(n int, status Status, checkIn time.Time) Entry {
		return Entry{ID: uuid.New(), QueueNumber: n, Status: status, CheckInTime: checkIn}
	}
	entries := []Entry{
		mk(3, StatusWaiting, fixedNow.Add(-1*time.Minute)),
		mk(1, StatusWaiting, fixedNow),
		mk(2, StatusWaiting, fixedNow.Add(-10*time.Minute)),
		mk(5, StatusServing, fixedNow),
		mk(4, StatusCalled, fixedNow),
		mk(6, StatusCompleted, fixedNow),
	}

	board := PartitionByStatus(entries)

	var waiting []int
	for _, e := range board.Waiting {
		waiting = append(waiting, e.QueueNumber)
	}
	assert.Equal(t, []int{1, 2, 3}, waiting)
	require.Len(t, board.Called, 1)
	assert.Equal(t, 4, board.Called[0].QueueNumber)
	require.Len(t, board.Serving, 1)
	assert.Equal(t, 5, board.Serving[0].QueueNumber)
}

func TestPartitionByStatus_Empty(t *testing.T) {
	board := PartitionByStatus(nil)
	assert.NotNil(t, board.Waiting)
	assert.Empty(t, board.Waiting)
	assert.Empty(t, board.Called)
	assert.Empty(t, board.Serving)
}

func TestFixedRate(t *testing.T) {
	assert.Equal(t, 60, FixedRate{MinutesPerPatient: 15}.EstimateWait(4))
	assert.Equal(t, 60, FixedRate{}.EstimateWait(4))
	assert.Equal(t, 40, FixedRate{MinutesPerPatient: 10}.EstimateWait(4))
}
