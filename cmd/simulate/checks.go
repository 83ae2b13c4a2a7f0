package main

import (
	"fmt"
	"sort"
)

// checkQueueNumbers verifies that numbers handed out by concurrent joins are
// distinct and form one unbroken run.
func checkQueueNumbers(numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}

	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)

	for i := 1; i < len(sorted); i++ {
		switch {
		case sorted[i] == sorted[i-1]:
			return fmt.Errorf("queue number %d assigned twice", sorted[i])
		case sorted[i] != sorted[i-1]+1:
			return fmt.Errorf("gap in queue numbers between %d and %d", sorted[i-1], sorted[i])
		}
	}
	return nil
}

// checkSingleWinner verifies that exactly one of the racing bookings for the
// same slot succeeded and every loser got a conflict.
func checkSingleWinner(created, others int) error {
	if created != 1 {
		return fmt.Errorf("expected exactly one booking to succeed, got %d", created)
	}
	if others != 0 {
		return fmt.Errorf("%d bookings failed with something other than a conflict", others)
	}
	return nil
}
