package utils

import (
	"testing"
)

func TestProcessBatchKeepsOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	results := ProcessBatch(4, items, func(n int) int { return n * n }, "squares")
	for i, r := range results {
		if r != i*i {
			t.Fatalf("result %d: expected %d, got %d", i, i*i, r)
		}
	}

	if got := ProcessBatch(0, []int{}, func(n int) int { return n }, "empty"); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}
