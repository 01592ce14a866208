package datastore

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// ReadEdgeList parses "num_nodes num_directed_edges" followed by one "src dst" line per edge.
// Blank lines and lines starting with # are skipped.
func ReadEdgeList(r io.Reader) (int, models.EdgeIndex, error) {
	scanner := bufio.NewScanner(r)
	numNodes, numEdges := -1, 0
	var edges models.EdgeIndex
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return 0, models.EdgeIndex{}, fmt.Errorf("%w: edge list line %d: expected 2 fields, got %d", ErrMalformed, lineNo, len(parts))
		}
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA != nil || errB != nil {
			return 0, models.EdgeIndex{}, fmt.Errorf("%w: edge list line %d: %q", ErrMalformed, lineNo, line)
		}

		if numNodes < 0 {
			numNodes, numEdges = a, b
			edges = models.NewEdgeIndex(numEdges)
			continue
		}
		edges.Append(a, b)
	}
	if err := scanner.Err(); err != nil {
		return 0, models.EdgeIndex{}, err
	}

	if numNodes < 0 {
		return 0, models.EdgeIndex{}, fmt.Errorf("%w: edge list has no header", ErrMalformed)
	}
	if edges.Len() != numEdges {
		return 0, models.EdgeIndex{}, fmt.Errorf("%w: header declares %d edges, found %d", ErrMalformed, numEdges, edges.Len())
	}
	return numNodes, edges, nil
}

// WriteEdgeList writes the header line then one "src dst" line per directed edge
func WriteEdgeList(w io.Writer, numNodes int, edges models.EdgeIndex) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "%d %d\n", numNodes, edges.Len()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < edges.Len(); i++ {
		if _, err := fmt.Fprintf(bw, "%d %d\n", edges.Src[i], edges.Dst[i]); err != nil {
			return fmt.Errorf("failed to write edge: %w", err)
		}
	}
	return bw.Flush()
}

// ReadFeatures parses a headerless CSV with one row per node
func ReadFeatures(r io.Reader) (*mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	var data []float64
	rows, cols := 0, -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: features: %v", ErrMalformed, err)
		}
		if cols < 0 {
			cols = len(record)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: features row %d column %d: %v", ErrMalformed, rows, j, err)
			}
			data = append(data, v)
		}
		rows++
	}

	if rows == 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: features file is empty", ErrMalformed)
	}
	return mat.NewDense(rows, cols, data), nil
}

// WriteFeatures writes one CSV row per node
func WriteFeatures(w io.Writer, features *mat.Dense) error {
	writer := csv.NewWriter(w)

	rows, cols := features.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(features.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadLabels parses one integer label per line
func ReadLabels(r io.Reader) ([]int, error) {
	scanner := bufio.NewScanner(r)
	labels := make([]int, 0)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		y, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("%w: labels line %d: %q", ErrMalformed, lineNo, line)
		}
		labels = append(labels, y)
	}
	return labels, scanner.Err()
}

// WriteLabels writes one label per line
func WriteLabels(w io.Writer, labels []int) error {
	bw := bufio.NewWriter(w)
	for _, y := range labels {
		if _, err := fmt.Fprintf(bw, "%d\n", y); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return zero, err
	}
	defer file.Close()

	v, err := parse(file)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return file.Close()
}
