// Package engine combines the WAF and ML verdicts for one payload into a
// decision record.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultDetectorTimeout = 5 * time.Second

// Validator rejects selections outside the catalog.
type Validator interface {
	Validate(sel core.Selector) error
}

// Recorder accepts audit entries without blocking.
type Recorder interface {
	Record(rec core.DecisionRecord) error
}

type Config struct {
	Policy          detector.Policy
	DetectorTimeout time.Duration
}

type Engine struct {
	catalog  Validator
	waf      core.Detector
	ml       core.ModelDetector
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config

	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(catalog Validator, waf core.Detector, ml core.ModelDetector, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.Policy == "" {
		cfg.Policy = detector.PolicyAny
	}
	if cfg.DetectorTimeout <= 0 {
		cfg.DetectorTimeout = DefaultDetectorTimeout
	}
	e := &Engine{
		catalog: catalog,
		waf:     waf,
		ml:      ml,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide validates the selection, runs both detectors concurrently and
// combines their verdicts. Both detectors are always invoked; if either
// fails the decision fails and no record is produced.
func (e *Engine) Decide(ctx context.Context, payload string, sel core.Selector) (core.DecisionRecord, error) {
	if err := e.catalog.Validate(sel); err != nil {
		return core.DecisionRecord{}, err
	}

	var wafVerdict, mlVerdict core.Verdict
	mlDetector := e.ml.Bind(sel)

	// no shared cancellation: a failing detector must not cut the other short
	var g errgroup.Group
	g.Go(func() error {
		v, err := e.evaluate(ctx, e.waf, payload)
		wafVerdict = v
		return err
	})
	g.Go(func() error {
		v, err := e.evaluate(ctx, mlDetector, payload)
		mlVerdict = v
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Warn("decision failed",
			"dataset", sel.DatasetID,
			"model", sel.ModelID,
			"error", err,
		)
		return core.DecisionRecord{}, err
	}

	rec := core.DecisionRecord{
		ID:              e.newID(),
		Payload:         payload,
		WAFVerdict:      wafVerdict,
		MLVerdict:       mlVerdict,
		CombinedVerdict: detector.Combine(e.cfg.Policy, wafVerdict, mlVerdict),
		ModelID:         sel.ModelID,
		DatasetID:       sel.DatasetID,
		Timestamp:       e.now().UTC(),
	}

	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(sel.DatasetID, sel.ModelID, string(rec.CombinedVerdict)).Inc()
	}
	if e.recorder != nil {
		if err := e.recorder.Record(rec); err != nil {
			e.logger.Error("audit record failed", "id", rec.ID, "error", err)
		}
	}
	e.logger.Debug("decision",
		"id", rec.ID,
		"waf", rec.WAFVerdict,
		"ml", rec.MLVerdict,
		"combined", rec.CombinedVerdict,
	)
	return rec, nil
}

func (e *Engine) evaluate(ctx context.Context, d core.Detector, payload string) (core.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
	defer cancel()

	start := time.Now()
	v, err := call(ctx, d, payload)
	if e.metrics != nil {
		e.metrics.DetectorLatency.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if core.IsSelectorError(err) {
			return "", err
		}
		if e.metrics != nil {
			e.metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
		}
		return "", core.NewDetectorError(d.Name(), err)
	}
	if _, perr := core.ParseVerdict(string(v)); perr != nil {
		return "", core.NewDetectorError(d.Name(), perr)
	}
	if e.metrics != nil {
		e.metrics.DetectorVerdicts.WithLabelValues(d.Name(), string(v)).Inc()
	}
	return v, nil
}

type outcome struct {
	verdict core.Verdict
	err     error
}

// call bounds d.Evaluate by ctx even when the detector never looks at it.
// A late result is discarded; the goroutine finishes on its own.
func call(ctx context.Context, d core.Detector, payload string) (core.Verdict, error) {
	done := make(chan outcome, 1)
	go func() {
		v, err := d.Evaluate(ctx, payload)
		done <- outcome{v, err}
	}()
	select {
	case out := <-done:
		return out.verdict, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Policy reports the combination policy in effect.
func (e *Engine) Policy() detector.Policy { return e.cfg.Policy }

// IsDetectorFailure reports whether err came from an unavailable detector.
func IsDetectorFailure(err error) bool {
	var de *core.DetectorError
	return errors.As(err, &de)
}
