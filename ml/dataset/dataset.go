// Package dataset reads and writes labeled examples in the sparse text format
// "label idx:value idx:value ...", one example per line.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"text2phenotype.com/svm/ml"
	"text2phenotype.com/svm/utils"
)

var ErrMalformedLine = errors.New("malformed dataset line")

type ReadOptions struct {
	// Deduplicate drops lines identical to an earlier one.
	Deduplicate bool
	// Unlabeled lines carry only features; every example gets label 0.
	Unlabeled bool
}

// Read parses every example of r. Blank lines and lines starting with "#" or "//"
// are skipped, a trailing "# text" becomes the example name.
func Read(r io.Reader, opts ReadOptions) ([]ml.FeatureVector, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	hashes := make(map[uint64]bool)
	var examples []ml.FeatureVector
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if opts.Deduplicate {
			hash := utils.HashString(line)
			if hashes[hash] {
				continue
			}
			hashes[hash] = true
		}
		v, err := parseLine(line, opts.Unlabeled)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedLine, lineNo, err)
		}
		examples = append(examples, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return examples, nil
}

func ReadFile(path string, opts ReadOptions) ([]ml.FeatureVector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, opts)
}

func parseLine(line string, unlabeled bool) (*ml.SparseVector, error) {
	var name string
	if pos := strings.Index(line, "#"); pos >= 0 {
		name = strings.TrimSpace(line[pos+1:])
		line = line[:pos]
	}
	tokens := strings.Fields(line)

	var label float64
	if !unlabeled {
		if len(tokens) == 0 {
			return nil, errors.New("missing label")
		}
		var err error
		label, err = strconv.ParseFloat(tokens[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad label %q", tokens[0])
		}
		tokens = tokens[1:]
	}

	entries := make([]ml.SparseEntry, 0, len(tokens))
	last := -1
	for _, token := range tokens {
		parts := strings.SplitN(token, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("feature %q is not idx:value", token)
		}
		idx, err := strconv.Atoi(parts[0])
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("bad feature index %q", parts[0])
		}
		if idx <= last {
			return nil, fmt.Errorf("feature index %d is not ascending", idx)
		}
		value, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad feature value %q", parts[1])
		}
		last = idx
		if value != 0 {
			entries = append(entries, ml.SparseEntry{Index: idx, Value: value})
		}
	}
	v := ml.NewSparseVector(label, entries)
	v.ExampleName = name
	return v, nil
}

// Write emits the non-zero features of each example, limited to selected when it is not empty.
func Write(w io.Writer, examples []ml.FeatureVector, selected ml.FeatureSubset) error {
	out := bufio.NewWriter(w)
	for _, v := range examples {
		out.WriteString(strconv.FormatFloat(v.ClassLabel(), 'g', -1, 64))
		writeFeature := func(idx int) {
			if value := v.Feature(idx); value != 0 {
				fmt.Fprintf(out, " %d:%s", idx, strconv.FormatFloat(value, 'g', -1, 64))
			}
		}
		if sparse, ok := v.(*ml.SparseVector); ok && len(selected) == 0 {
			for _, e := range sparse.Entries {
				writeFeature(e.Index)
			}
		} else {
			indexes := selected
			if len(indexes) == 0 {
				indexes = ml.AllFeatures(v.NumFeatures())
			}
			for _, idx := range indexes {
				writeFeature(idx)
			}
		}
		if name := v.Name(); name != "" {
			out.WriteString(" # ")
			out.WriteString(name)
		}
		out.WriteByte('\n')
	}
	return out.Flush()
}

func WriteFile(path string, examples []ml.FeatureVector, selected ml.FeatureSubset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, examples, selected); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Labels returns the class label of every example in order.
func Labels(examples []ml.FeatureVector) []float64 {
	labels := make([]float64, len(examples))
	for i, v := range examples {
		labels[i] = v.ClassLabel()
	}
	return labels
}
