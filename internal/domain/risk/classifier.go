// Package risk scores post-discharge deterioration risk with a pre-trained
// decision forest. The artifact is loaded once at startup and is read-only
// afterwards, safe for unlimited concurrent use.
package risk

import (
	"encoding/json"
	"fmt"
	"os"
)

// node is one decision-tree node. Feature < 0 marks a leaf, in which case
// ClassCounts holds the training-sample distribution over the four classes.
type node struct {
	Feature     int       `json:"feature"`
	Threshold   float64   `json:"threshold"`
	Left        int       `json:"left"`
	Right       int       `json:"right"`
	ClassCounts []float64 `json:"class_counts,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

type forest struct {
	Classes int    `json:"classes"`
	Trees   []tree `json:"trees"`
}

// Classifier wraps the loaded forest.
type Classifier struct {
	forest forest
}

// Load reads the model artifact from disk. A missing or malformed artifact is
// a fatal configuration error: the caller must not start serving without it.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk model %s: %w", path, err)
	}

	var f forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse risk model %s: %w", path, err)
	}
	if f.Classes != numClasses {
		return nil, fmt.Errorf("risk model %s: expected %d classes, got %d", path, numClasses, f.Classes)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("risk model %s: no trees", path)
	}
	for i, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("risk model %s: tree %d is empty", path, i)
		}
		for j, n := range t.Nodes {
			if n.Feature < 0 && len(n.ClassCounts) != numClasses {
				return nil, fmt.Errorf("risk model %s: tree %d node %d: leaf needs %d class counts", path, i, j, numClasses)
			}
		}
	}

	return &Classifier{forest: f}, nil
}

// Classify returns the risk score and label for one feature vector.
//
// The label is the arg-max class; the score is P(HIGH)+P(CRITICAL), which is
// deliberately not the max-class probability so the scalar stays conservative
// even when the label is MEDIUM.
func (c *Classifier) Classify(f Features) (float64, Label) {
	probs := c.Proba(f)

	best := 0
	for i := 1; i < numClasses; i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	score := probs[2] + probs[3]
	return score, labels[best]
}

// Proba returns the probability distribution over the four classes, averaged
// across the forest's trees.
func (c *Classifier) Proba(f Features) [numClasses]float64 {
	vec := f.vector()

	var sum [numClasses]float64
	for _, t := range c.forest.Trees {
		leaf := t.walk(vec)
		total := 0.0
		for _, n := range leaf.ClassCounts {
			total += n
		}
		if total == 0 {
			continue
		}
		for i := 0; i < numClasses; i++ {
			sum[i] += leaf.ClassCounts[i] / total
		}
	}

	n := float64(len(c.forest.Trees))
	for i := range sum {
		sum[i] /= n
	}
	return sum
}

func (t tree) walk(vec [7]float64) node {
	n := t.Nodes[0]
	for n.Feature >= 0 {
		if vec[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n
}
