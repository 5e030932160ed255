package ml

import (
	"fmt"
	"sort"
)

// FeatureVector is the read-only view of one example that the trainers consume.
type FeatureVector interface {
	NumFeatures() int
	Feature(idx int) float64
	ClassLabel() float64
	SetClassLabel(label float64)
	Name() string
}

type DenseVector struct {
	Values      []float64
	Label       float64
	ExampleName string
}

func NewDenseVector(label float64, values ...float64) *DenseVector {
	return &DenseVector{Values: values, Label: label}
}

func (v *DenseVector) NumFeatures() int {
	return len(v.Values)
}

func (v *DenseVector) Feature(idx int) float64 {
	if idx < 0 || idx >= len(v.Values) {
		return 0
	}
	return v.Values[idx]
}

func (v *DenseVector) ClassLabel() float64 {
	return v.Label
}

func (v *DenseVector) SetClassLabel(label float64) {
	v.Label = label
}

func (v *DenseVector) Name() string {
	return v.ExampleName
}

type SparseEntry struct {
	Index int
	Value float64
}

// SparseVector keeps only non-zero entries ordered by index.
type SparseVector struct {
	Entries     []SparseEntry
	Label       float64
	ExampleName string
}

func NewSparseVector(label float64, entries []SparseEntry) *SparseVector {
	sorted := make([]SparseEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return &SparseVector{Entries: sorted, Label: label}
}

func (v *SparseVector) NumFeatures() int {
	if len(v.Entries) == 0 {
		return 0
	}
	return v.Entries[len(v.Entries)-1].Index + 1
}

func (v *SparseVector) Feature(idx int) float64 {
	pos := sort.Search(len(v.Entries), func(i int) bool {
		return v.Entries[i].Index >= idx
	})
	if pos < len(v.Entries) && v.Entries[pos].Index == idx {
		return v.Entries[pos].Value
	}
	return 0
}

func (v *SparseVector) ClassLabel() float64 {
	return v.Label
}

func (v *SparseVector) SetClassLabel(label float64) {
	v.Label = label
}

func (v *SparseVector) Name() string {
	return v.ExampleName
}

// FeatureSubset is the ascending list of feature indexes used for kernel evaluation.
type FeatureSubset []int

func AllFeatures(n int) FeatureSubset {
	subset := make(FeatureSubset, n)
	for i := range subset {
		subset[i] = i
	}
	return subset
}

// NewFeatureSubset sorts and de-duplicates the given indexes.
func NewFeatureSubset(indexes ...int) FeatureSubset {
	sorted := append([]int(nil), indexes...)
	sort.Ints(sorted)
	subset := make(FeatureSubset, 0, len(sorted))
	for i, idx := range sorted {
		if i > 0 && idx == sorted[i-1] {
			continue
		}
		subset = append(subset, idx)
	}
	return subset
}

func (s FeatureSubset) Validate() error {
	for i, idx := range s {
		if idx < 0 {
			return fmt.Errorf("negative feature index %d", idx)
		}
		if i > 0 && idx <= s[i-1] {
			return fmt.Errorf("feature indexes must be strictly ascending, got %d after %d", idx, s[i-1])
		}
	}
	return nil
}

func (s FeatureSubset) Contains(idx int) bool {
	pos := sort.SearchInts(s, idx)
	return pos < len(s) && s[pos] == idx
}

// Compact gathers the selected features of v into dst, growing it when needed.
func (s FeatureSubset) Compact(v FeatureVector, dst []float64) []float64 {
	if cap(dst) < len(s) {
		dst = make([]float64, len(s))
	}
	dst = dst[:len(s)]
	for k, idx := range s {
		dst[k] = v.Feature(idx)
	}
	return dst
}

// UsedFeatures returns the ascending union of the indexes the vectors store.
// A dense vector contributes every index it holds; a sparse vector only its entries.
func UsedFeatures(x []FeatureVector) FeatureSubset {
	width := 0
	sparse := make(map[int]struct{})
	for _, v := range x {
		if s, ok := v.(*SparseVector); ok {
			for _, e := range s.Entries {
				sparse[e.Index] = struct{}{}
			}
			continue
		}
		if n := v.NumFeatures(); n > width {
			width = n
		}
	}
	subset := AllFeatures(width)
	for idx := range sparse {
		if idx >= width {
			subset = append(subset, idx)
		}
	}
	sort.Ints(subset)
	return subset
}
