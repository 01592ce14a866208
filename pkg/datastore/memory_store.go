package datastore

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// MemoryStore keeps a dataset, its split and encoded reports in memory
type MemoryStore struct {
	mutex   sync.RWMutex
	graph   *models.Graph
	split   *splitFile
	reports map[string][]byte
}

// NewMemoryStore wraps graph; LoadRawData hands out clones
func NewMemoryStore(graph *models.Graph) *MemoryStore {
	return &MemoryStore{
		graph:   graph,
		reports: make(map[string][]byte),
	}
}

func (s *MemoryStore) LoadRawData() (*models.Graph, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.graph == nil {
		return nil, ErrDatasetNotFound
	}
	return s.graph.Clone(), nil
}

func (s *MemoryStore) SaveTrainTestSplit(train, test []int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.split = &splitFile{
		TrainIndices: append([]int(nil), train...),
		TestIndices:  append([]int(nil), test...),
	}
	return nil
}

func (s *MemoryStore) LoadTrainTestSplit() ([]int, []int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.split == nil {
		return nil, nil, ErrSplitNotFound
	}
	return append([]int(nil), s.split.TrainIndices...), append([]int(nil), s.split.TestIndices...), nil
}

// SaveReport stores v YAML-encoded so later mutation of v does not leak in
func (s *MemoryStore) SaveReport(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.reports[name] = data
	return nil
}

// Report decodes a saved report into v
func (s *MemoryStore) Report(name string, v any) error {
	s.mutex.RLock()
	data, exists := s.reports[name]
	s.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("report not found: %s", name)
	}
	return yaml.Unmarshal(data, v)
}

// Reports lists saved report names, sorted
func (s *MemoryStore) Reports() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.reports))
	for name := range s.reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
