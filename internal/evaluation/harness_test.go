package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// oracleDecider blocks payloads prefixed "mal" and fails those prefixed "boom".
type oracleDecider struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func (d *oracleDecider) Decide(ctx context.Context, payload string, sel core.Selector) (core.DecisionRecord, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.seen = append(d.seen, payload)
	d.mu.Unlock()
	if strings.HasPrefix(payload, "boom") {
		return core.DecisionRecord{}, &core.DetectorError{Detector: "waf", Err: errors.New("unreachable")}
	}
	v := core.Allowed
	if strings.HasPrefix(payload, "mal") || strings.HasPrefix(payload, "adv") {
		v = core.Blocked
	}
	return core.DecisionRecord{Payload: payload, CombinedVerdict: v, DatasetID: sel.DatasetID, ModelID: sel.ModelID}, nil
}

type fixture struct {
	root    string
	catalog *catalog.Catalog
}

func jsonList(prefix string, n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("%q", fmt.Sprintf("%s-%d", prefix, i))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func newFixture(t *testing.T, legit, mal int) *fixture {
	t.Helper()
	root := t.TempDir()
	corpusDir := filepath.Join(root, "corpus")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))

	writeFile(t, filepath.Join(corpusDir, "legit.json"), jsonList("legit", legit))
	writeFile(t, filepath.Join(corpusDir, "mal.json"), jsonList("mal", mal))
	writeFile(t, filepath.Join(corpusDir, "adv_ms.json"), jsonList("adv-ms", 5))
	writeFile(t, filepath.Join(corpusDir, "adv_m1.json"), jsonList("adv-ml", 3))

	doc := fmt.Sprintf(`
datasets:
  - id: ds1
    models_dir: %[1]s/models
    corpus_dir: %[1]s/corpus
    corpora:
      legitimate: legit.json
      malicious: mal.json
      adv_ms: adv_ms.json
      adv_ml: adv_{model}.json
    models:
      - {id: m1, artifact: m1.json}
      - {id: m2, artifact: m2.json}
  - id: broken
    corpus_dir: %[1]s/corpus
    corpora:
      legitimate: legit.json
      malicious: missing.json
    models:
      - {id: m1, artifact: m1.json}
`, root)
	c, err := catalog.Parse([]byte(doc))
	require.NoError(t, err)
	return &fixture{root: root, catalog: c}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (f *fixture) harness(d core.Decider, opts Options) *Harness {
	if opts.ResultsDir == "" {
		opts.ResultsDir = filepath.Join(f.root, "results")
	}
	return NewHarness(f.catalog, corpus.NewLoader(f.catalog), d, opts, testLogger())
}

var m1 = core.Selector{DatasetID: "ds1", ModelID: "m1"}

func TestRunPairPerfectMetrics(t *testing.T) {
	f := newFixture(t, 100, 100)
	d := &oracleDecider{}
	h := f.harness(d, Options{Workers: 8})

	res, err := h.RunPair(context.Background(), m1)
	require.NoError(t, err)
	assert.Equal(t, int32(200), d.calls.Load())
	assert.Equal(t, 200, res.Evaluated)
	assert.Zero(t, res.Excluded)
	assert.Equal(t, 1.0, res.Scores.Accuracy)
	assert.Equal(t, 1.0, res.Scores.F1)
	assert.Equal(t, 1.0, res.Scores.AUC)

	dir := filepath.Join(f.root, "results", "ds1", "m1")
	assert.Equal(t, dir, res.Dir)
	report, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Accuracy: 1.0000")
	assert.Contains(t, string(report), "F1-Score: 1.0000")
	assert.Contains(t, string(report), "AUC-ROC: 1.0000")

	yTrue, err := ReadNPY(filepath.Join(dir, TrueFile))
	require.NoError(t, err)
	yPred, err := ReadNPY(filepath.Join(dir, PredFile))
	require.NoError(t, err)
	assert.Equal(t, yTrue, yPred)
	assert.Len(t, yTrue, 200)
}

func TestRunPairIsIdempotent(t *testing.T) {
	f := newFixture(t, 10, 10)
	first := &oracleDecider{}
	_, err := f.harness(first, Options{}).RunPair(context.Background(), m1)
	require.NoError(t, err)

	reportPath := filepath.Join(f.root, "results", "ds1", "m1", ReportFile)
	before, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	infoBefore, err := os.Stat(reportPath)
	require.NoError(t, err)

	second := &oracleDecider{}
	res, err := f.harness(second, Options{}).RunPair(context.Background(), m1)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, second.calls.Load())

	after, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	infoAfter, err := os.Stat(reportPath)
	require.NoError(t, err)
	assert.Equal(t, infoBefore.ModTime(), infoAfter.ModTime())
}

func TestRunPairExcludesFailedPayloads(t *testing.T) {
	f := newFixture(t, 10, 10)
	writeFile(t, filepath.Join(f.root, "corpus", "mal.json"), `["mal-0","boom-1","mal-2"]`)
	d := &oracleDecider{}

	res, err := f.harness(d, Options{}).RunPair(context.Background(), m1)
	require.NoError(t, err)
	assert.Equal(t, int32(13), d.calls.Load())
	assert.Equal(t, 12, res.Evaluated)
	assert.Equal(t, 1, res.Excluded)

	yTrue, err := ReadNPY(filepath.Join(res.Dir, TrueFile))
	require.NoError(t, err)
	assert.Len(t, yTrue, 12)
	report, err := os.ReadFile(filepath.Join(res.Dir, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "12 evaluated, 1 excluded")
}

// slowDecider ignores ctx and sleeps on payloads prefixed "slow".
type slowDecider struct {
	oracleDecider
	delay time.Duration
}

func (d *slowDecider) Decide(ctx context.Context, payload string, sel core.Selector) (core.DecisionRecord, error) {
	if strings.HasPrefix(payload, "slow") {
		time.Sleep(d.delay)
		return core.DecisionRecord{CombinedVerdict: core.Blocked}, nil
	}
	return d.oracleDecider.Decide(ctx, payload, sel)
}

func TestRunPairExcludesPayloadsPastTimeout(t *testing.T) {
	f := newFixture(t, 4, 0)
	writeFile(t, filepath.Join(f.root, "corpus", "mal.json"), `["mal-0","slow-1"]`)
	d := &slowDecider{delay: time.Second}

	start := time.Now()
	res, err := f.harness(d, Options{PayloadTimeout: 50 * time.Millisecond}).RunPair(context.Background(), m1)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 800*time.Millisecond)
	assert.Equal(t, 5, res.Evaluated)
	assert.Equal(t, 1, res.Excluded)
}

func TestRunPairAllFailedWritesNothing(t *testing.T) {
	f := newFixture(t, 0, 0)
	writeFile(t, filepath.Join(f.root, "corpus", "mal.json"), `["boom-0","boom-1"]`)

	res, err := f.harness(&oracleDecider{}, Options{}).RunPair(context.Background(), m1)
	assert.ErrorIs(t, err, ErrNoPredictions)
	_, statErr := os.Stat(filepath.Join(res.Dir, ReportFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunPairUnknownSelector(t *testing.T) {
	f := newFixture(t, 3, 3)
	d := &oracleDecider{}

	_, err := f.harness(d, Options{}).RunPair(context.Background(), core.Selector{DatasetID: "ds1", ModelID: "m9"})
	assert.ErrorIs(t, err, core.ErrUnknownModel)
	assert.Zero(t, d.calls.Load())
}

func TestRunSkipsOnlyMalformedPair(t *testing.T) {
	f := newFixture(t, 5, 5)
	d := &oracleDecider{}

	results, err := f.harness(d, Options{}).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, Failed(results))

	byPair := map[string]PairResult{}
	for _, r := range results {
		byPair[r.Selector.String()] = r
	}
	assert.NoError(t, byPair["ds1/m1"].Err)
	assert.NoError(t, byPair["ds1/m2"].Err)
	assert.True(t, IsMalformed(byPair["broken/m1"]))

	_, statErr := os.Stat(filepath.Join(f.root, "results", "broken", "m1", ReportFile))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, int32(20), d.calls.Load())
}

func TestRunFilter(t *testing.T) {
	f := newFixture(t, 2, 2)
	d := &oracleDecider{}

	results, err := f.harness(d, Options{}).Run(context.Background(), func(s core.Selector) bool { return s.ModelID == "m2" })
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].Selector.ModelID)
}

func TestShuffleIsReproducibleAcrossRuns(t *testing.T) {
	f := newFixture(t, 20, 20)

	a := &oracleDecider{}
	_, err := f.harness(a, Options{Workers: 1, ResultsDir: filepath.Join(f.root, "a")}).RunPair(context.Background(), m1)
	require.NoError(t, err)
	b := &oracleDecider{}
	_, err = f.harness(b, Options{Workers: 1, ResultsDir: filepath.Join(f.root, "b")}).RunPair(context.Background(), m1)
	require.NoError(t, err)

	assert.Equal(t, a.seen, b.seen)
	ta, err := os.ReadFile(filepath.Join(f.root, "a", "ds1", "m1", TrueFile))
	require.NoError(t, err)
	tb, err := os.ReadFile(filepath.Join(f.root, "b", "ds1", "m1", TrueFile))
	require.NoError(t, err)
	assert.Equal(t, ta, tb)
}

func TestIncludeAdversarial(t *testing.T) {
	f := newFixture(t, 4, 4)
	d := &oracleDecider{}
	h := f.harness(d, Options{IncludeAdversarial: true, Limiter: rate.NewLimiter(rate.Inf, 1)})

	res, err := h.RunPair(context.Background(), m1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.root, "results", "ds1_with_adv", "m1"), res.Dir)
	assert.Equal(t, 4+4+5+3, res.Evaluated)
	assert.Equal(t, 12, res.Scores.Classes[1].Support)
}

func TestRunPairCancelled(t *testing.T) {
	f := newFixture(t, 50, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.harness(&oracleDecider{}, Options{PayloadTimeout: time.Second}).RunPair(ctx, m1)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(res.Dir, ReportFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSummary(t *testing.T) {
	f := newFixture(t, 10, 10)
	_, err := f.harness(&oracleDecider{}, Options{Plot: true}).Run(context.Background(), func(s core.Selector) bool { return s.DatasetID == "ds1" })
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.root, "results", "ds1", "m1", ROCFile))

	out := filepath.Join(f.root, "summary")
	rows, err := WriteSummary(filepath.Join(f.root, "results"), out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "m1", rows[0].Model)
	assert.Equal(t, 1.0, rows[0].AUC)
	assert.Equal(t, 1.0, rows[1].F1)

	csvData, err := os.ReadFile(filepath.Join(out, SummaryFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Dataset,Model,AUC,Accuracy,F1-Score,Precision (Blocked),Recall (Blocked)", lines[0])
	assert.Equal(t, "ds1,m1,1,1,1,1,1", lines[1])

	pdf, err := os.ReadFile(filepath.Join(out, CombinedROCFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
}
