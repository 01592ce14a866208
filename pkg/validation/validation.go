package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// maxReportedErrors bounds the number of per-element errors collected per field
const maxReportedErrors = 20

// ValidateGraphStructure performs comprehensive validation of a node-classification graph
func ValidateGraphStructure(graph *models.Graph) error {
	if graph == nil {
		return models.ValidationError{Field: "graph", Message: "graph cannot be nil"}
	}

	var errors models.ValidationErrors

	if graph.NumNodes <= 0 {
		errors = append(errors, models.ValidationError{
			Field:   "num_nodes",
			Message: "graph must contain at least one node",
			Value:   fmt.Sprintf("%d", graph.NumNodes),
		})
	}
	if graph.Features == nil {
		errors = append(errors, models.ValidationError{
			Field:   "features",
			Message: "feature matrix cannot be nil",
		})
	}

	if len(errors) > 0 {
		return errors
	}

	if rows, _ := graph.Features.Dims(); rows != graph.NumNodes {
		errors = append(errors, models.ValidationError{
			Field:   "features",
			Message: "feature matrix must have one row per node",
			Value:   fmt.Sprintf("%d rows for %d nodes", rows, graph.NumNodes),
		})
	}

	errors = append(errors, validateLabels(graph.Labels, graph.NumNodes)...)
	errors = append(errors, validateEdges(graph.Edges, graph.NumNodes)...)

	if graph.HasPredefinedSplit() {
		if err := ValidateSplit(graph.TrainIndices, graph.TestIndices, graph.NumNodes); err != nil {
			if ve, ok := err.(models.ValidationErrors); ok {
				errors = append(errors, ve...)
			} else {
				errors = append(errors, models.ValidationError{Field: "predefined_split", Message: err.Error()})
			}
		}
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// validateLabels checks one non-negative label per node
func validateLabels(labels []int, numNodes int) models.ValidationErrors {
	var errors models.ValidationErrors

	if len(labels) != numNodes {
		return append(errors, models.ValidationError{
			Field:   "labels",
			Message: "must have one label per node",
			Value:   fmt.Sprintf("%d labels for %d nodes", len(labels), numNodes),
		})
	}

	for i, y := range labels {
		if y < 0 {
			errors = append(errors, models.ValidationError{
				Field:   fmt.Sprintf("labels[%d]", i),
				Message: "label cannot be negative",
				Value:   fmt.Sprintf("%d", y),
			})
			if len(errors) >= maxReportedErrors {
				break
			}
		}
	}
	return errors
}

// validateEdges checks endpoint ranges, self-loops and that every directed edge has its reverse
func validateEdges(edges models.EdgeIndex, numNodes int) models.ValidationErrors {
	var errors models.ValidationErrors

	if len(edges.Src) != len(edges.Dst) {
		return append(errors, models.ValidationError{
			Field:   "edges",
			Message: "source and target arrays must have equal length",
			Value:   fmt.Sprintf("%d vs %d", len(edges.Src), len(edges.Dst)),
		})
	}

	seen := make(map[[2]int]int, edges.Len())
	for i := 0; i < edges.Len(); i++ {
		u, v := edges.Src[i], edges.Dst[i]
		fieldPrefix := fmt.Sprintf("edge[%d]", i)

		if u < 0 || u >= numNodes || v < 0 || v >= numNodes {
			errors = append(errors, models.ValidationError{
				Field:   fieldPrefix,
				Message: "endpoint out of range",
				Value:   fmt.Sprintf("%d -> %d", u, v),
			})
		} else if u == v {
			errors = append(errors, models.ValidationError{
				Field:   fieldPrefix,
				Message: "self-loops are not allowed",
				Value:   fmt.Sprintf("%d -> %d", u, v),
			})
		}
		seen[[2]int{u, v}]++

		if len(errors) >= maxReportedErrors {
			return errors
		}
	}

	for pair, count := range seen {
		if seen[[2]int{pair[1], pair[0]}] != count {
			errors = append(errors, models.ValidationError{
				Field:   "edges",
				Message: "directed edge has no matching reverse edge",
				Value:   fmt.Sprintf("%d -> %d", pair[0], pair[1]),
			})
			if len(errors) >= maxReportedErrors {
				break
			}
		}
	}

	return errors
}

// ValidateSplit checks that train and test indices are in range, unique and disjoint
func ValidateSplit(train, test []int, numNodes int) error {
	var errors models.ValidationErrors

	if len(train) == 0 {
		errors = append(errors, models.ValidationError{
			Field:   "train_indices",
			Message: "training split cannot be empty",
		})
	}

	owner := make(map[int]string, len(train)+len(test))
	check := func(field string, indices []int) {
		for i, n := range indices {
			switch {
			case n < 0 || n >= numNodes:
				errors = append(errors, models.ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: "node index out of range",
					Value:   fmt.Sprintf("%d", n),
				})
			case owner[n] == field:
				errors = append(errors, models.ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: "duplicate node index",
					Value:   fmt.Sprintf("%d", n),
				})
			case owner[n] != "":
				errors = append(errors, models.ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: "node appears in both train and test splits",
					Value:   fmt.Sprintf("%d", n),
				})
			default:
				owner[n] = field
			}
		}
	}
	check("train_indices", train)
	check("test_indices", test)

	if len(errors) > 0 {
		if len(errors) > maxReportedErrors {
			errors = errors[:maxReportedErrors]
		}
		return errors
	}
	return nil
}

// IsolatedNodes returns nodes with no incident edge, ascending
func IsolatedNodes(graph *models.Graph) []int {
	degree := make([]int, graph.NumNodes)
	for i := 0; i < graph.Edges.Len(); i++ {
		if u := graph.Edges.Src[i]; u >= 0 && u < graph.NumNodes {
			degree[u]++
		}
		if v := graph.Edges.Dst[i]; v >= 0 && v < graph.NumNodes {
			degree[v]++
		}
	}

	isolated := make([]int, 0)
	for n, d := range degree {
		if d == 0 {
			isolated = append(isolated, n)
		}
	}
	return isolated
}

// ValidateOutputDirectory checks if output directory exists or can be created
func ValidateOutputDirectory(outputDir string) error {
	info, err := os.Stat(outputDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}
		return nil
	}

	if err != nil {
		return fmt.Errorf("cannot access output directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output path exists but is not a directory: %s", outputDir)
	}

	testFile := filepath.Join(outputDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}
	os.Remove(testFile)

	return nil
}
