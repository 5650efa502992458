// Package model loads exported classifier artifacts and serves them through a
// process-wide cache keyed by (dataset, model).
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

const (
	KindLinear = "linear"
	KindForest = "forest"
)

// Artifact is the JSON export of a trained classifier. Linear kinds cover the
// linear SVMs, logistic regressions and the infinity-norm SVM; forest covers
// random forests.
type Artifact struct {
	Kind    string    `json:"kind"`
	Dim     int       `json:"dim"`
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias,omitempty"`
	Trees   []Tree    `json:"trees,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split when Leaf is false: x[Feature] <= Threshold goes Left.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Class     int     `json:"class,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// ReadArtifact parses an artifact file and builds its classifier.
func ReadArtifact(path string) (core.Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return a.Build()
}

// Build validates the artifact and returns the matching classifier.
func (a Artifact) Build() (core.Classifier, error) {
	if a.Dim <= 0 {
		return nil, errors.New("artifact: dim must be positive")
	}
	switch a.Kind {
	case KindLinear:
		if len(a.Weights) != a.Dim {
			return nil, fmt.Errorf("artifact: %d weights for dim %d", len(a.Weights), a.Dim)
		}
		return &Linear{Weights: a.Weights, Bias: a.Bias}, nil
	case KindForest:
		if len(a.Trees) == 0 {
			return nil, errors.New("artifact: forest has no trees")
		}
		for i, t := range a.Trees {
			if err := t.validate(a.Dim); err != nil {
				return nil, fmt.Errorf("artifact: tree %d: %w", i, err)
			}
		}
		return &Forest{Trees: a.Trees, Dim: a.Dim}, nil
	}
	return nil, fmt.Errorf("artifact: unknown kind %q", a.Kind)
}

func (t Tree) validate(dim int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			if n.Class != 0 && n.Class != 1 {
				return fmt.Errorf("node %d: class %d is not binary", i, n.Class)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= dim {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		// children must point forward so traversal always terminates
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// Linear predicts 1 when w·x + b > 0.
type Linear struct {
	Weights []float64
	Bias    float64
}

func (l *Linear) Predict(ctx context.Context, x core.FeatureVector) (int, error) {
	if len(x) != len(l.Weights) {
		return 0, fmt.Errorf("linear model expects %d features, got %d", len(l.Weights), len(x))
	}
	score := l.Bias
	for i, w := range l.Weights {
		score += w * x[i]
	}
	if score > 0 {
		return 1, nil
	}
	return 0, nil
}

// Forest predicts the majority class of its trees; ties go to 0.
type Forest struct {
	Trees []Tree
	Dim   int
}

func (f *Forest) Predict(ctx context.Context, x core.FeatureVector) (int, error) {
	if len(x) != f.Dim {
		return 0, fmt.Errorf("forest expects %d features, got %d", f.Dim, len(x))
	}
	votes := 0
	for _, t := range f.Trees {
		votes += t.predict(x)
	}
	if 2*votes > len(f.Trees) {
		return 1, nil
	}
	return 0, nil
}

func (t Tree) predict(x core.FeatureVector) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Class
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
