package datastore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/validation"
)

// File names inside a dataset directory
const (
	EdgeListFile        = "graph.edgelist"
	FeaturesFile        = "features.csv"
	LabelsFile          = "labels.txt"
	PredefinedSplitFile = "predefined_split.yaml"
	SplitFile           = "train_test_split.yaml"
)

// FileStore keeps one dataset per directory
type FileStore struct {
	dir    string
	name   string
	logger zerolog.Logger
}

// NewFileStore creates a store rooted at dir; the dataset name is the directory base name
func NewFileStore(dir string, logger zerolog.Logger) *FileStore {
	name := filepath.Base(filepath.Clean(dir))
	return &FileStore{
		dir:    dir,
		name:   name,
		logger: logger.With().Str("dataset", name).Logger(),
	}
}

// Dir returns the dataset directory
func (s *FileStore) Dir() string {
	return s.dir
}

// LoadRawData reads and validates the edge list, features, labels and any predefined split
func (s *FileStore) LoadRawData() (*models.Graph, error) {
	structure, err := readFile(s.path(EdgeListFile), parseEdgeList)
	if err != nil {
		return nil, err
	}

	features, err := readFile(s.path(FeaturesFile), ReadFeatures)
	if err != nil {
		return nil, err
	}
	labels, err := readFile(s.path(LabelsFile), ReadLabels)
	if err != nil {
		return nil, err
	}

	graph := &models.Graph{
		Name:     s.name,
		NumNodes: structure.numNodes,
		Edges:    structure.edges,
		Features: features,
		Labels:   labels,
	}

	var predefined splitFile
	switch err := s.readYAML(PredefinedSplitFile, &predefined); {
	case err == nil:
		graph.TrainIndices = predefined.TrainIndices
		graph.TestIndices = predefined.TestIndices
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := validation.ValidateGraphStructure(graph); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", s.name, err)
	}

	s.logger.Info().
		Int("nodes", graph.NumNodes).
		Int("edges", graph.NumEdges()).
		Int("features", graph.NumFeatures()).
		Int("classes", graph.NumClasses()).
		Bool("predefined_split", graph.HasPredefinedSplit()).
		Msg("Raw data loaded")

	return graph, nil
}

// WriteRawData writes graph in the layout LoadRawData reads
func (s *FileStore) WriteRawData(graph *models.Graph) error {
	if graph == nil {
		return fmt.Errorf("graph cannot be nil")
	}
	if err := validation.ValidateOutputDirectory(s.dir); err != nil {
		return err
	}

	if err := writeFile(s.path(EdgeListFile), func(w io.Writer) error {
		return WriteEdgeList(w, graph.NumNodes, graph.Edges)
	}); err != nil {
		return err
	}
	if err := writeFile(s.path(FeaturesFile), func(w io.Writer) error {
		return WriteFeatures(w, graph.Features)
	}); err != nil {
		return err
	}
	if err := writeFile(s.path(LabelsFile), func(w io.Writer) error {
		return WriteLabels(w, graph.Labels)
	}); err != nil {
		return err
	}

	if graph.HasPredefinedSplit() {
		split := splitFile{TrainIndices: graph.TrainIndices, TestIndices: graph.TestIndices}
		if err := s.writeYAML(PredefinedSplitFile, split); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("dir", s.dir).
		Int("nodes", graph.NumNodes).
		Int("edges", graph.NumEdges()).
		Msg("Raw data written")
	return nil
}

// SaveTrainTestSplit persists the split
func (s *FileStore) SaveTrainTestSplit(train, test []int) error {
	if err := s.writeYAML(SplitFile, splitFile{TrainIndices: train, TestIndices: test}); err != nil {
		return err
	}
	s.logger.Debug().Int("train", len(train)).Int("test", len(test)).Msg("Train/test split saved")
	return nil
}

// LoadTrainTestSplit reads the persisted split
func (s *FileStore) LoadTrainTestSplit() ([]int, []int, error) {
	var split splitFile
	if err := s.readYAML(SplitFile, &split); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSplitNotFound, s.path(SplitFile))
		}
		return nil, nil, err
	}
	return split.TrainIndices, split.TestIndices, nil
}

// SaveReport writes v as <name>.yaml in the dataset directory
func (s *FileStore) SaveReport(name string, v any) error {
	name = strings.TrimSuffix(filepath.Base(name), ".yaml")
	if name == "" || name == "." {
		return fmt.Errorf("report name cannot be empty")
	}
	return s.writeYAML(name+".yaml", v)
}

func (s *FileStore) path(file string) string {
	return filepath.Join(s.dir, file)
}

func (s *FileStore) readYAML(file string, v any) error {
	data, err := os.ReadFile(s.path(file))
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, file, err)
	}
	return nil
}

func (s *FileStore) writeYAML(file string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", file, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(s.path(file), data, 0644)
}

type edgeListResult struct {
	numNodes int
	edges    models.EdgeIndex
}

func parseEdgeList(r io.Reader) (edgeListResult, error) {
	n, e, err := ReadEdgeList(r)
	return edgeListResult{numNodes: n, edges: e}, err
}
