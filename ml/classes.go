package ml

// ClassList maps an internal class index (0..K-1) to the external integer label.
type ClassList []int

func (c ClassList) Len() int {
	return len(c)
}

// IndexOf returns -1 when the label is not part of the list.
func (c ClassList) IndexOf(label int) int {
	for i, l := range c {
		if l == label {
			return i
		}
	}
	return -1
}

func (c ClassList) Label(idx int) int {
	return c[idx]
}

// GroupByClass collects the examples of each class in first-seen order.
// perm holds the original example indexes grouped by class, start[k] and
// count[k] delimit class k inside perm.
func GroupByClass(labels []float64) (classes ClassList, start, count, perm []int) {
	dataClass := make([]int, len(labels))
	for i, y := range labels {
		label := int(y)
		k := classes.IndexOf(label)
		if k < 0 {
			k = len(classes)
			classes = append(classes, label)
			count = append(count, 0)
		}
		count[k]++
		dataClass[i] = k
	}

	start = make([]int, len(classes))
	for k := 1; k < len(classes); k++ {
		start[k] = start[k-1] + count[k-1]
	}
	next := append([]int(nil), start...)
	perm = make([]int, len(labels))
	for i, k := range dataClass {
		perm[next[k]] = i
		next[k]++
	}
	return classes, start, count, perm
}
