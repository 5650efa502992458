package detector

import (
	"context"
	"fmt"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// ClassifierSource resolves the classifier of a catalog selection.
type ClassifierSource interface {
	Get(ctx context.Context, sel core.Selector) (core.Classifier, error)
}

// ML extracts features once per invocation and asks the selected classifier.
type ML struct {
	Extractor   core.FeatureExtractor
	Classifiers ClassifierSource
}

func NewML(extractor core.FeatureExtractor, classifiers ClassifierSource) *ML {
	return &ML{Extractor: extractor, Classifiers: classifiers}
}

// Bind fixes the selection so the result satisfies core.Detector.
func (m *ML) Bind(sel core.Selector) core.Detector {
	return &boundML{ml: m, sel: sel}
}

// Evaluate classifies payload with the classifier of sel. Selector errors are
// returned as is so callers can tell them apart from detector failures.
func (m *ML) Evaluate(ctx context.Context, payload string, sel core.Selector) (core.Verdict, error) {
	clf, err := m.Classifiers.Get(ctx, sel)
	if err != nil {
		if core.IsSelectorError(err) {
			return "", err
		}
		return "", core.NewDetectorError(MLName, err)
	}

	x, err := m.Extractor.Extract(ctx, payload)
	if err != nil {
		return "", core.NewDetectorError(MLName, fmt.Errorf("extract features: %w", err))
	}

	label, err := clf.Predict(ctx, x)
	if err != nil {
		return "", core.NewDetectorError(MLName, fmt.Errorf("predict: %w", err))
	}

	v, err := core.VerdictFromLabel(label)
	if err != nil {
		return "", core.NewDetectorError(MLName, err)
	}
	return v, nil
}

type boundML struct {
	ml  *ML
	sel core.Selector
}

func (b *boundML) Name() string { return MLName }

func (b *boundML) Evaluate(ctx context.Context, payload string) (core.Verdict, error) {
	return b.ml.Evaluate(ctx, payload, b.sel)
}
