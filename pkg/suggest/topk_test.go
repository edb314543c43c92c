package suggest

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestTopKKeepsBestK(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		input    []Suggestion
		want     []string
	}{
		{
			name:     "below capacity keeps everything",
			capacity: 5,
			input: []Suggestion{
				{Text: "alpha", Score: 0.1},
				{Text: "beta", Score: 0.9},
			},
			want: []string{"beta", "alpha"},
		},
		{
			name:     "at capacity evicts the weakest",
			capacity: 2,
			input: []Suggestion{
				{Text: "low", Score: 0.1},
				{Text: "mid", Score: 0.5},
				{Text: "high", Score: 0.9},
			},
			want: []string{"high", "mid"},
		},
		{
			name:     "equal scores break ties lexicographically",
			capacity: 2,
			input: []Suggestion{
				{Text: "cherry", Score: 0.5},
				{Text: "apple", Score: 0.5},
				{Text: "banana", Score: 0.5},
			},
			want: []string{"apple", "banana"},
		},
		{
			name:     "zero capacity keeps nothing",
			capacity: 0,
			input: []Suggestion{
				{Text: "anything", Score: 1.0},
			},
			want: []string{},
		},
		{
			name:     "duplicate scores across inserts stay stable",
			capacity: 3,
			input: []Suggestion{
				{Text: "b", Score: 1.0},
				{Text: "a", Score: 1.0},
				{Text: "d", Score: 0.5},
				{Text: "c", Score: 1.0},
			},
			want: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topk := NewTopK(tt.capacity)
			for _, s := range tt.input {
				topk.Insert(s)
			}
			got := topk.Drain()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d suggestions, got %d", len(tt.want), len(got))
			}
			for i, text := range tt.want {
				if got[i].Text != text {
					t.Errorf("position %d: expected %q, got %q", i, text, got[i].Text)
				}
			}
		})
	}
}

func TestTopKMatchesNaiveSelection(t *testing.T) {
	// the heap-bounded selector must agree with sort-then-truncate for any
	// capacity and input size
	rng := rand.New(rand.NewSource(42))
	for _, capacity := range []int{1, 2, 7, 30, 100} {
		for _, n := range []int{0, 1, 5, 29, 30, 31, 250} {
			name := fmt.Sprintf("k=%d/n=%d", capacity, n)
			t.Run(name, func(t *testing.T) {
				pool := make([]Suggestion, n)
				for i := range pool {
					pool[i] = Suggestion{
						Text:  fmt.Sprintf("word%03d", rng.Intn(60)),
						Score: float64(rng.Intn(10)) / 10,
					}
				}

				topk := NewTopK(capacity)
				for _, s := range pool {
					topk.Insert(s)
				}
				got := topk.Drain()

				naive := make([]Suggestion, len(pool))
				copy(naive, pool)
				SortDescending(naive)
				if len(naive) > capacity {
					naive = naive[:capacity]
				}

				if len(got) != len(naive) {
					t.Fatalf("expected %d results, got %d", len(naive), len(got))
				}
				for i := range naive {
					if got[i] != naive[i] {
						t.Errorf("position %d: expected %+v, got %+v", i, naive[i], got[i])
					}
				}
			})
		}
	}
}

func TestTopKPeekMin(t *testing.T) {
	topk := NewTopK(2)
	if _, ok := topk.PeekMin(); ok {
		t.Fatal("empty selector should have no minimum")
	}

	topk.Insert(Suggestion{Text: "strong", Score: 0.9})
	topk.Insert(Suggestion{Text: "weak", Score: 0.1})
	min, ok := topk.PeekMin()
	if !ok || min.Text != "weak" {
		t.Errorf("expected weak at the root, got %+v (ok=%v)", min, ok)
	}

	topk.Insert(Suggestion{Text: "mid", Score: 0.5})
	min, _ = topk.PeekMin()
	if min.Text != "mid" {
		t.Errorf("expected mid after eviction, got %q", min.Text)
	}
}

func TestTopKDrainDoesNotClear(t *testing.T) {
	topk := NewTopK(3)
	topk.Insert(Suggestion{Text: "kept", Score: 1.0})

	first := topk.Drain()
	second := topk.Drain()
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("drain should be repeatable: first=%d second=%d", len(first), len(second))
	}
	if topk.Len() != 1 {
		t.Errorf("expected selector to retain contents after drain, len=%d", topk.Len())
	}

	topk.Clear()
	if topk.Len() != 0 {
		t.Errorf("expected empty selector after clear, len=%d", topk.Len())
	}
	if topk.Cap() != 3 {
		t.Errorf("clear must keep capacity, got %d", topk.Cap())
	}
}

func TestTopKCustomOrder(t *testing.T) {
	// rank by score ascending to prove the comparator is honored
	topk := NewTopKFunc(2, func(a, b Suggestion) bool {
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.Text < b.Text
	})
	for _, s := range []Suggestion{
		{Text: "big", Score: 0.9},
		{Text: "small", Score: 0.1},
		{Text: "mid", Score: 0.5},
	} {
		topk.Insert(s)
	}
	got := topk.Drain()
	if got[0].Text != "small" || got[1].Text != "mid" {
		t.Errorf("expected [small mid], got [%s %s]", got[0].Text, got[1].Text)
	}
}
