// Package evaluation scores node-classification predictions.
package evaluation

import (
	"fmt"
	"sort"
)

// ClassCounts holds the confusion counts of one class
type ClassCounts struct {
	TP int `json:"tp" yaml:"tp"`
	FP int `json:"fp" yaml:"fp"`
	FN int `json:"fn" yaml:"fn"`
}

// F1 returns 2TP / (2TP + FP + FN), zero when the class never occurs
func (c ClassCounts) F1() float64 {
	denom := 2*c.TP + c.FP + c.FN
	if denom == 0 {
		return 0
	}
	return float64(2*c.TP) / float64(denom)
}

// Scores summarizes predictions over a node subset
type Scores struct {
	MicroF1 float64              `json:"micro_f1" yaml:"micro_f1"`
	MacroF1 float64              `json:"macro_f1" yaml:"macro_f1"`
	Support int                  `json:"support" yaml:"support"`
	Classes map[int]*ClassCounts `json:"-" yaml:"-"`
}

// Score compares predictions with labels on the given node indices
func Score(predictions, labels []int, indices []int) (*Scores, error) {
	if len(predictions) != len(labels) {
		return nil, fmt.Errorf("predictions and labels must have the same length: %d vs %d", len(predictions), len(labels))
	}

	for _, n := range indices {
		if n < 0 || n >= len(labels) {
			return nil, fmt.Errorf("node index %d out of range [0, %d)", n, len(labels))
		}
	}
	classes := buildConfusionTable(predictions, labels, indices)

	var total ClassCounts
	macro := 0.0
	for _, c := range classes {
		total.TP += c.TP
		total.FP += c.FP
		total.FN += c.FN
		macro += c.F1()
	}
	if len(classes) > 0 {
		macro /= float64(len(classes))
	}

	return &Scores{
		MicroF1: total.F1(),
		MacroF1: macro,
		Support: len(indices),
		Classes: classes,
	}, nil
}

// buildConfusionTable counts per-class true positives, false positives and false negatives
func buildConfusionTable(predictions, labels []int, indices []int) map[int]*ClassCounts {
	table := make(map[int]*ClassCounts)
	get := func(class int) *ClassCounts {
		c, ok := table[class]
		if !ok {
			c = &ClassCounts{}
			table[class] = c
		}
		return c
	}

	for _, n := range indices {
		if n < 0 || n >= len(labels) {
			continue
		}
		y, p := labels[n], predictions[n]
		if y == p {
			get(y).TP++
			continue
		}
		get(p).FP++
		get(y).FN++
	}
	return table
}

// SortedClasses returns the class ids present in the table, ascending
func (s *Scores) SortedClasses() []int {
	ids := make([]int, 0, len(s.Classes))
	for id := range s.Classes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
