package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/corpus"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Catalog is the part of the catalog the harness needs.
type Catalog interface {
	Validate(sel core.Selector) error
	Pairs() []core.Selector
	HasCorpus(dataset string, pt core.PayloadType) bool
}

type Options struct {
	ResultsDir         string
	IncludeAdversarial bool
	Seed               uint64
	Workers            int
	PayloadTimeout     time.Duration
	// Limiter paces decisions, e.g. when replaying against a remote service.
	Limiter *rate.Limiter
	Plot    bool
}

// PairResult describes the outcome of one (dataset, model) run.
type PairResult struct {
	Selector  core.Selector
	Dir       string
	Skipped   bool
	Scores    Scores
	Evaluated int
	Excluded  int
	Err       error
}

type Harness struct {
	catalog Catalog
	corpus  core.CorpusLoader
	decider core.Decider
	opts    Options
	logger  *slog.Logger
}

func NewHarness(catalog Catalog, loader core.CorpusLoader, decider core.Decider, opts Options, logger *slog.Logger) *Harness {
	if opts.ResultsDir == "" {
		opts.ResultsDir = "results"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.PayloadTimeout <= 0 {
		opts.PayloadTimeout = 10 * time.Second
	}
	return &Harness{catalog: catalog, corpus: loader, decider: decider, opts: opts, logger: logger}
}

// OutputDir is results/<dataset>[_with_adv]/<model>.
func (h *Harness) OutputDir(sel core.Selector) string {
	ds := sel.DatasetID
	if h.opts.IncludeAdversarial {
		ds += "_with_adv"
	}
	return filepath.Join(h.opts.ResultsDir, ds, sel.ModelID)
}

// Run evaluates every catalog pair accepted by keep (all when keep is nil).
// A failing pair is logged and recorded; only cancellation stops the sweep.
func (h *Harness) Run(ctx context.Context, keep func(core.Selector) bool) ([]PairResult, error) {
	var results []PairResult
	for _, sel := range h.catalog.Pairs() {
		if keep != nil && !keep(sel) {
			continue
		}
		res, err := h.RunPair(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			h.logger.Error("pair failed", "dataset", sel.DatasetID, "model", sel.ModelID, "error", err)
			res.Err = err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunPair evaluates one selection. An existing report is an idempotent skip:
// no corpus is read, no decision is requested and nothing is written.
func (h *Harness) RunPair(ctx context.Context, sel core.Selector) (PairResult, error) {
	res := PairResult{Selector: sel, Dir: h.OutputDir(sel)}
	if err := h.catalog.Validate(sel); err != nil {
		return res, err
	}

	exists, err := ReportExists(res.Dir)
	if err != nil {
		return res, err
	}
	if exists {
		h.logger.Info("report exists, skipping", "dataset", sel.DatasetID, "model", sel.ModelID, "dir", res.Dir)
		res.Skipped = true
		return res, nil
	}

	entries, err := h.buildCorpus(sel)
	if err != nil {
		return res, err
	}
	h.logger.Info("evaluating",
		"dataset", sel.DatasetID,
		"model", sel.ModelID,
		"payloads", len(entries),
	)

	yTrue, yPred, err := h.replay(ctx, sel, entries)
	if err != nil {
		return res, err
	}
	res.Evaluated = len(yPred)
	res.Excluded = len(entries) - len(yPred)

	scores, err := Score(yTrue, yPred)
	if err != nil {
		return res, fmt.Errorf("%s: %w", sel, err)
	}
	res.Scores = scores

	title := fmt.Sprintf("ROC Curve - %s / %s", sel.DatasetID, sel.ModelID)
	if err := WriteArtifacts(res.Dir, title, yTrue, yPred, scores, res.Excluded, h.opts.Plot); err != nil {
		return res, err
	}
	h.logger.Info("pair evaluated",
		"dataset", sel.DatasetID,
		"model", sel.ModelID,
		"accuracy", scores.Accuracy,
		"f1", scores.F1,
		"auc", scores.AUC,
		"excluded", res.Excluded,
	)
	return res, nil
}

func (h *Harness) buildCorpus(sel core.Selector) ([]core.CorpusEntry, error) {
	types := []core.PayloadType{core.PayloadLegitimate, core.PayloadMalicious}
	if h.opts.IncludeAdversarial {
		for _, pt := range []core.PayloadType{core.PayloadAdvWAF, core.PayloadAdvML} {
			if h.catalog.HasCorpus(sel.DatasetID, pt) {
				types = append(types, pt)
			}
		}
	}

	subsets := make([]corpus.Subset, 0, len(types))
	for _, pt := range types {
		payloads, err := h.corpus.Load(sel.DatasetID, sel.ModelID, pt)
		if err != nil {
			return nil, fmt.Errorf("load %s corpus for %s: %w", pt, sel, err)
		}
		subsets = append(subsets, corpus.Subset{Type: pt, Payloads: payloads})
	}
	seed := h.opts.Seed
	if seed == 0 {
		seed = corpus.DefaultSeed
	}
	return corpus.Combine(subsets, seed), nil
}

// replay decides every entry with bounded parallelism. Results land in
// per-entry slots so the vectors keep corpus order; failed entries are
// dropped from both vectors.
func (h *Harness) replay(ctx context.Context, sel core.Selector, entries []core.CorpusEntry) ([]int, []int, error) {
	preds := make([]int, len(entries))
	ok := make([]bool, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Workers)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if h.opts.Limiter != nil {
				if err := h.opts.Limiter.Wait(gctx); err != nil {
					return err
				}
			}
			pctx, cancel := context.WithTimeout(gctx, h.opts.PayloadTimeout)
			defer cancel()

			rec, err := decideWithin(pctx, h.decider, entry.Payload, sel)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// a selector error would fail every payload, so it ends the pair
				if core.IsSelectorError(err) {
					return err
				}
				h.logger.Warn("payload excluded", "index", i, "dataset", sel.DatasetID, "model", sel.ModelID, "error", err)
				return nil
			}
			preds[i] = rec.CombinedVerdict.Int()
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	yTrue := make([]int, 0, len(entries))
	yPred := make([]int, 0, len(entries))
	for i, entry := range entries {
		if !ok[i] {
			continue
		}
		yTrue = append(yTrue, int(entry.Label))
		yPred = append(yPred, preds[i])
	}
	if len(yPred) == 0 && len(entries) > 0 {
		return nil, nil, fmt.Errorf("%s: all %d payloads failed: %w", sel, len(entries), ErrNoPredictions)
	}
	return yTrue, yPred, nil
}

// Failed reports whether any result carries an error.
func Failed(results []PairResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// IsMalformed reports whether a pair failed on its corpus.
func IsMalformed(r PairResult) bool {
	return errors.Is(r.Err, core.ErrMalformedCorpus)
}

type decision struct {
	rec core.DecisionRecord
	err error
}

// decideWithin returns ctx.Err() once ctx is done, even if the decider
// keeps running.
func decideWithin(ctx context.Context, d core.Decider, payload string, sel core.Selector) (core.DecisionRecord, error) {
	done := make(chan decision, 1)
	go func() {
		rec, err := d.Decide(ctx, payload, sel)
		done <- decision{rec, err}
	}()
	select {
	case out := <-done:
		return out.rec, out.err
	case <-ctx.Done():
		return core.DecisionRecord{}, ctx.Err()
	}
}
