package svm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"text2phenotype.com/svm/ml"
)

const (
	maxModelLine = 64 << 20
	maxFeatures  = 1 << 24
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeFloats(w *bufio.Writer, key string, values []float64) {
	w.WriteString(key)
	for _, v := range values {
		w.WriteString(" ")
		w.WriteString(formatFloat(v))
	}
	w.WriteString("\n")
}

func writeInts(w *bufio.Writer, key string, values []int) {
	w.WriteString(key)
	for _, v := range values {
		w.WriteString(" ")
		w.WriteString(strconv.Itoa(v))
	}
	w.WriteString("\n")
}

// formatFeatures writes runs of consecutive indexes as first-last.
func formatFeatures(subset ml.FeatureSubset) []string {
	var parts []string
	for i := 0; i < len(subset); {
		j := i
		for j+1 < len(subset) && subset[j+1] == subset[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", subset[i], subset[j]))
		} else {
			parts = append(parts, strconv.Itoa(subset[i]))
		}
		i = j + 1
	}
	return parts
}

func parseFeatures(tokens []string) (ml.FeatureSubset, error) {
	var subset ml.FeatureSubset
	total := 0
	for _, token := range tokens {
		bounds := strings.SplitN(token, "-", 2)
		first, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, err
		}
		last := first
		if len(bounds) == 2 {
			if last, err = strconv.Atoi(bounds[1]); err != nil {
				return nil, err
			}
		}
		if last < first {
			return nil, fmt.Errorf("feature range %q is descending", token)
		}
		if total += last - first + 1; last-first >= maxFeatures || total > maxFeatures {
			return nil, fmt.Errorf("features header names more than %d indexes", maxFeatures)
		}
		for idx := first; idx <= last; idx++ {
			subset = append(subset, idx)
		}
	}
	return subset, subset.Validate()
}

// Save writes the model in the line-oriented text format read by Load.
func (m *Model) Save(out io.Writer) error {
	w := bufio.NewWriter(out)
	param := m.Param

	fmt.Fprintf(w, "svm_type %s\n", param.SvmType)
	fmt.Fprintf(w, "kernel_type %s\n", param.KernelType)
	if param.KernelType == KernelTypePoly {
		fmt.Fprintf(w, "degree %d\n", param.Degree)
	}
	if param.usesGamma() {
		fmt.Fprintf(w, "gamma %s\n", formatFloat(param.Gamma))
	}
	if param.KernelType == KernelTypePoly || param.KernelType == KernelTypeSigmoid {
		fmt.Fprintf(w, "coef0 %s\n", formatFloat(param.Coef0))
	}
	if param.ProbSharpness > 0 {
		fmt.Fprintf(w, "prob_sharpness %s\n", formatFloat(param.ProbSharpness))
	}
	if len(m.Selected) > 0 {
		fmt.Fprintf(w, "features %s\n", strings.Join(formatFeatures(m.Selected), " "))
	}
	fmt.Fprintf(w, "nr_class %d\n", m.NrClass)
	fmt.Fprintf(w, "total_sv %d\n", m.L)
	writeFloats(w, "rho", m.Rho)
	if len(m.Label) > 0 {
		writeInts(w, "label", m.Label)
	}
	if len(m.ProbA) > 0 {
		writeFloats(w, "probA", m.ProbA)
	}
	if len(m.ProbB) > 0 {
		writeFloats(w, "probB", m.ProbB)
	}
	if len(m.NSV) > 0 {
		writeInts(w, "nr_sv", m.NSV)
	}

	w.WriteString("SV\n")
	for i := 0; i < m.L; i++ {
		for k := range m.SvCoef {
			w.WriteString(formatFloat(m.SvCoef[k][i]))
			w.WriteString(" ")
		}
		sv := m.SV.At(i)
		if param.KernelType == KernelTypePrecomputed {
			fmt.Fprintf(w, "0:%d", int(sv.Feature(0)))
		} else {
			first := true
			for _, idx := range m.Selected {
				v := sv.Feature(idx)
				if v == 0 {
					continue
				}
				if !first {
					w.WriteString(" ")
				}
				first = false
				w.WriteString(strconv.Itoa(idx))
				w.WriteString(":")
				w.WriteString(formatFloat(v))
			}
		}
		w.WriteString("\n")
	}
	return w.Flush()
}

func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedModel, fmt.Sprintf(format, args...))
}

func parseFloats(tokens []string) ([]float64, error) {
	values := make([]float64, len(tokens))
	for i, t := range tokens {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseInts(tokens []string) ([]int, error) {
	values := make([]int, len(tokens))
	for i, t := range tokens {
		v, err := strconv.Atoi(t)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Load reads a model written by Save. Any inconsistency between the declared
// counts and the support vector section fails the whole load.
func Load(in io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxModelLine)

	m := &Model{NrClass: -1, L: -1}
	seen := make(map[string]bool)
	lineNo := 0
	inHeader := true

	for inHeader && scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		key, args := fields[0], fields[1:]
		if seen[key] {
			return nil, malformed("line %d: duplicate %s", lineNo, key)
		}
		seen[key] = true

		var err error
		switch key {
		case "svm_type":
			if len(args) != 1 {
				return nil, malformed("line %d: svm_type needs one value", lineNo)
			}
			m.Param.SvmType, err = ParseSvmType(args[0])
		case "kernel_type":
			if len(args) != 1 {
				return nil, malformed("line %d: kernel_type needs one value", lineNo)
			}
			m.Param.KernelType, err = ParseKernelType(args[0])
		case "degree":
			m.Param.Degree, err = parseSingleInt(args)
		case "gamma":
			m.Param.Gamma, err = parseSingleFloat(args)
		case "coef0":
			m.Param.Coef0, err = parseSingleFloat(args)
		case "prob_sharpness":
			m.Param.ProbSharpness, err = parseSingleFloat(args)
		case "features":
			m.Selected, err = parseFeatures(args)
		case "nr_class":
			m.NrClass, err = parseSingleInt(args)
		case "total_sv":
			m.L, err = parseSingleInt(args)
		case "rho":
			m.Rho, err = parseFloats(args)
		case "label":
			var labels []int
			labels, err = parseInts(args)
			m.Label = labels
		case "probA":
			m.ProbA, err = parseFloats(args)
		case "probB":
			m.ProbB, err = parseFloats(args)
		case "nr_sv":
			m.NSV, err = parseInts(args)
		case "SV":
			inHeader = false
		default:
			return nil, malformed("line %d: unknown header %q", lineNo, key)
		}
		if err != nil {
			return nil, malformed("line %d: %s: %v", lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inHeader {
		return nil, malformed("missing SV section")
	}
	if err := m.validateHeader(seen); err != nil {
		return nil, err
	}

	// Rows grow with the lines actually read; total_sv is only checked against them.
	coefRows := m.NrClass - 1
	if coefRows > 0 {
		m.SvCoef = make([][]float64, coefRows)
	}
	vectors := OwnedVectors{}
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(vectors) >= m.L {
			return nil, malformed("line %d: more support vectors than total_sv %d", lineNo, m.L)
		}
		if len(fields) < coefRows {
			return nil, malformed("line %d: expected %d coefficients", lineNo, coefRows)
		}
		for k := 0; k < coefRows; k++ {
			v, err := strconv.ParseFloat(fields[k], 64)
			if err != nil {
				return nil, malformed("line %d: coefficient %d: %v", lineNo, k, err)
			}
			m.SvCoef[k] = append(m.SvCoef[k], v)
		}
		entries := make([]ml.SparseEntry, 0, len(fields)-coefRows)
		for _, token := range fields[coefRows:] {
			entry, err := parseEntry(token)
			if err != nil {
				return nil, malformed("line %d: %v", lineNo, err)
			}
			entries = append(entries, entry)
		}
		vectors = append(vectors, ml.NewSparseVector(0, entries))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(vectors) != m.L {
		return nil, malformed("declared total_sv %d but found %d support vectors", m.L, len(vectors))
	}
	for k := range m.SvCoef {
		if m.SvCoef[k] == nil {
			m.SvCoef[k] = []float64{}
		}
	}

	if len(m.Selected) == 0 && m.Param.KernelType != KernelTypePrecomputed {
		m.Selected = ml.UsedFeatures(vectors)
	}
	m.SV = vectors
	m.prepare()
	return m, nil
}

func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (m *Model) validateHeader(seen map[string]bool) error {
	for _, key := range []string{"svm_type", "kernel_type", "nr_class", "total_sv", "rho"} {
		if !seen[key] {
			return malformed("missing %s", key)
		}
	}
	if m.L < 0 {
		return malformed("negative total_sv %d", m.L)
	}
	if m.Param.IsClassification() {
		if m.NrClass < 1 {
			return malformed("nr_class %d", m.NrClass)
		}
	} else if m.NrClass != 2 {
		return malformed("%s model must have nr_class 2, got %d", m.Param.SvmType, m.NrClass)
	}

	pairs := m.pairs()
	if len(m.Rho) != pairs {
		return malformed("expected %d rho values, got %d", pairs, len(m.Rho))
	}
	if !m.Param.IsClassification() {
		if seen["label"] || seen["nr_sv"] || seen["probB"] {
			return malformed("%s model cannot carry label, nr_sv or probB", m.Param.SvmType)
		}
		if seen["probA"] && (len(m.ProbA) != 1 || m.Param.SvmType == OneClass) {
			return malformed("probA is only valid as one value for regression")
		}
		return nil
	}

	if len(m.Label) != m.NrClass {
		return malformed("expected %d labels, got %d", m.NrClass, len(m.Label))
	}
	if len(m.NSV) != m.NrClass {
		return malformed("expected %d nr_sv values, got %d", m.NrClass, len(m.NSV))
	}
	total := 0
	for _, n := range m.NSV {
		if n < 0 {
			return malformed("negative nr_sv %d", n)
		}
		total += n
	}
	if total != m.L {
		return malformed("nr_sv adds up to %d but total_sv is %d", total, m.L)
	}
	if seen["probA"] != seen["probB"] {
		return malformed("probA and probB must appear together")
	}
	if seen["probA"] && (len(m.ProbA) != pairs || len(m.ProbB) != pairs) {
		return malformed("expected %d probA/probB values, got %d/%d", pairs, len(m.ProbA), len(m.ProbB))
	}
	return nil
}

func parseSingleInt(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one value, got %d", len(args))
	}
	return strconv.Atoi(args[0])
}

func parseSingleFloat(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one value, got %d", len(args))
	}
	return strconv.ParseFloat(args[0], 64)
}

func parseEntry(token string) (ml.SparseEntry, error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return ml.SparseEntry{}, fmt.Errorf("feature %q is not index:value", token)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return ml.SparseEntry{}, fmt.Errorf("feature %q: %v", token, err)
	}
	if idx < 0 {
		return ml.SparseEntry{}, fmt.Errorf("feature %q has a negative index", token)
	}
	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return ml.SparseEntry{}, fmt.Errorf("feature %q: %v", token, err)
	}
	return ml.SparseEntry{Index: idx, Value: v}, nil
}
