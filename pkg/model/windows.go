package model

// Windows is an index-aligned set of (input window, target) pairs.
// Inputs[k] holds SeqLength consecutive observations and Targets[k] the
// observation right after them; Starts[k] is the window's start index in the
// source series.
type Windows[T any] struct {
	SeqLength int   `json:"seq_length"`
	Starts    []int `json:"starts"`
	Inputs    [][]T `json:"inputs"`
	Targets   []T   `json:"targets"`
}

// Len returns the number of windows
func (w *Windows[T]) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Targets)
}

// Slice returns windows [from, to) as a view over the same backing arrays
func (w *Windows[T]) Slice(from, to int) *Windows[T] {
	return &Windows[T]{
		SeqLength: w.SeqLength,
		Starts:    w.Starts[from:to:to],
		Inputs:    w.Inputs[from:to:to],
		Targets:   w.Targets[from:to:to],
	}
}

// TargetIndex is the series index of the k-th window's target
func (w *Windows[T]) TargetIndex(k int) int {
	return w.Starts[k] + w.SeqLength
}

// Partition holds the three chronological subsets of a windowed dataset
type Partition[T any] struct {
	Train *Windows[T] `json:"train"`
	Val   *Windows[T] `json:"val"`
	Test  *Windows[T] `json:"test"`
}

// Split names
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

// Named returns the partition's subsets in chronological order keyed by split name
func (p Partition[T]) Named() []NamedWindows[T] {
	return []NamedWindows[T]{
		{Name: SplitTrain, Windows: p.Train},
		{Name: SplitVal, Windows: p.Val},
		{Name: SplitTest, Windows: p.Test},
	}
}

// NamedWindows pairs a split name with its windows
type NamedWindows[T any] struct {
	Name    string
	Windows *Windows[T]
}
