package core

import (
	"context"
)

// Detector produces one verdict for one payload. Implementations must not
// alter the payload and must report failures as errors, never as Allowed.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, payload string) (Verdict, error)
}

// ModelDetector binds a selection-dependent detector to one catalog selection.
type ModelDetector interface {
	Bind(sel Selector) Detector
}

// FeatureExtractor turns a payload into a fixed-dimension vector.
type FeatureExtractor interface {
	Extract(ctx context.Context, payload string) (FeatureVector, error)
	Dim() int
}

// Classifier predicts a binary label (0 legitimate, 1 malicious).
type Classifier interface {
	Predict(ctx context.Context, x FeatureVector) (int, error)
}

// ClassifierLoader resolves an artifact for a catalog selection.
type ClassifierLoader interface {
	Load(ctx context.Context, sel Selector) (Classifier, error)
}

// Decider produces a decision record for one payload.
type Decider interface {
	Decide(ctx context.Context, payload string, sel Selector) (DecisionRecord, error)
}

// AuditSink durably appends decision records.
type AuditSink interface {
	Name() string
	Write(ctx context.Context, rec DecisionRecord) error
	Close() error
}

// AuditReader is implemented by sinks whose store can be queried back.
type AuditReader interface {
	List(ctx context.Context, filter AuditFilter) (*PaginatedDecisions, error)
	Ping(ctx context.Context) error
}

// CorpusLoader reads labeled payload subsets.
type CorpusLoader interface {
	Load(dataset, model string, pt PayloadType) ([]string, error)
}
