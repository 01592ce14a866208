// Package datastore loads node-classification datasets and persists the
// train/test split and experiment reports.
package datastore

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

var (
	// ErrDatasetNotFound indicates missing raw data files.
	ErrDatasetNotFound = errors.New("datastore: dataset not found")
	// ErrSplitNotFound indicates no persisted train/test split.
	ErrSplitNotFound = errors.New("datastore: train/test split not found")
	// ErrMalformed indicates a data file that cannot be parsed.
	ErrMalformed = errors.New("datastore: malformed data file")
	// ErrInvalidTestRatio indicates a test ratio outside (0, 1).
	ErrInvalidTestRatio = errors.New("datastore: test ratio must be in (0, 1)")
)

// SplitSeed is the fixed seed of the reproducible train/test split
const SplitSeed uint64 = 100

// Store is the persistence boundary of an experiment
type Store interface {
	// LoadRawData returns the dataset graph; callers own the returned value
	LoadRawData() (*models.Graph, error)
	SaveTrainTestSplit(train, test []int) error
	LoadTrainTestSplit() (train, test []int, err error)
	// SaveReport persists an arbitrary result document under name
	SaveReport(name string, v any) error
}

// SplitTrainTest shuffles [0, numNodes) with seed and puts ceil(numNodes*testRatio)
// nodes in the test split. Both lists are returned sorted.
func SplitTrainTest(numNodes int, testRatio float64, seed uint64) (train, test []int, err error) {
	if !(testRatio > 0 && testRatio < 1) {
		return nil, nil, fmt.Errorf("%w: got %v", ErrInvalidTestRatio, testRatio)
	}
	if numNodes < 2 {
		return nil, nil, fmt.Errorf("need at least 2 nodes to split, got %d", numNodes)
	}

	nTest := int(math.Ceil(float64(numNodes) * testRatio))
	if nTest >= numNodes {
		nTest = numNodes - 1
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(numNodes)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}

// splitFile is the persisted split document
type splitFile struct {
	TrainIndices []int `yaml:"train_indices,flow"`
	TestIndices  []int `yaml:"test_indices,flow"`
}
