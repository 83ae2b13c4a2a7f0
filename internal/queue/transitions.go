package queue

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidTransition = errors.New("invalid queue status transition")

// transitions maps each state to the states it may move to. Terminal states
// have no entry.
var transitions = map[Status][]Status{
	StatusWaiting: {StatusCalled},
	StatusCalled:  {StatusServing, StatusCancelled},
	StatusServing: {StatusCompleted},
}

// CanTransition reports whether from -> to is an edge of the queue lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyTransition validates the move and returns a copy of entry in the new
// state with its timestamps stamped. The input is not modified.
func ApplyTransition(entry Entry, to Status, now time.Time) (Entry, error) {
	if !CanTransition(entry.Status, to) {
		return entry, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.Status, to)
	}

	next := entry
	next.Status = to

	switch to {
	case StatusCalled:
		t := now
		next.CalledTime = &t
	case StatusCompleted, StatusCancelled:
		t := now
		next.CompletedTime = &t
	}

	return next, nil
}

// PartitionByStatus splits entries into the three live columns, each ordered
// by queue number. Entries in terminal states are left out.
func PartitionByStatus(entries []Entry) Board {
	board := Board{
		Waiting: []Entry{},
		Called:  []Entry{},
		Serving: []Entry{},
	}

	for _, e := range entries {
		switch e.Status {
		case StatusWaiting:
			board.Waiting = append(board.Waiting, e)
		case StatusCalled:
			board.Called = append(board.Called, e)
		case StatusServing:
			board.Serving = append(board.Serving, e)
		}
	}

	byNumber := func(list []Entry) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].QueueNumber < list[j].QueueNumber
		})
	}
	byNumber(board.Waiting)
	byNumber(board.Called)
	byNumber(board.Serving)

	return board
}
