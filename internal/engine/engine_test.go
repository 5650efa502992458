package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/audit"
	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sel = core.Selector{DatasetID: "modsec", ModelID: "rf"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDetector struct {
	name    string
	verdict core.Verdict
	err     error
	delay   time.Duration
	calls   atomic.Int32
	started chan struct{}
	wait    chan struct{}
}

func (f *fakeDetector) Name() string { return f.name }

func (f *fakeDetector) Evaluate(ctx context.Context, payload string) (core.Verdict, error) {
	f.calls.Add(1)
	if f.started != nil {
		close(f.started)
	}
	if f.wait != nil {
		select {
		case <-f.wait:
		case <-time.After(2 * time.Second):
			return "", errors.New("peer detector never started")
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.verdict, f.err
}

type fakeML struct {
	*fakeDetector
	bound []core.Selector
	mu    sync.Mutex
}

func (f *fakeML) Bind(s core.Selector) core.Detector {
	f.mu.Lock()
	f.bound = append(f.bound, s)
	f.mu.Unlock()
	return f.fakeDetector
}

func newFakes(waf, ml core.Verdict) (*fakeDetector, *fakeML) {
	return &fakeDetector{name: detector.WAFName, verdict: waf},
		&fakeML{fakeDetector: &fakeDetector{name: detector.MLName, verdict: ml}}
}

func TestDecideTruthTable(t *testing.T) {
	tests := []struct {
		waf, ml, want core.Verdict
	}{
		{core.Allowed, core.Allowed, core.Allowed},
		{core.Allowed, core.Blocked, core.Blocked},
		{core.Blocked, core.Allowed, core.Blocked},
		{core.Blocked, core.Blocked, core.Blocked},
	}
	for _, tt := range tests {
		waf, ml := newFakes(tt.waf, tt.ml)
		e := New(catalog.Default(), waf, ml, Config{}, testLogger())

		rec, err := e.Decide(context.Background(), "payload", sel)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rec.CombinedVerdict, "%s/%s", tt.waf, tt.ml)
		assert.Equal(t, tt.waf, rec.WAFVerdict)
		assert.Equal(t, tt.ml, rec.MLVerdict)
		assert.Equal(t, int32(1), waf.calls.Load())
		assert.Equal(t, int32(1), ml.calls.Load())
	}
}

func TestDecideAllPolicy(t *testing.T) {
	waf, ml := newFakes(core.Blocked, core.Allowed)
	e := New(catalog.Default(), waf, ml, Config{Policy: detector.PolicyAll}, testLogger())

	rec, err := e.Decide(context.Background(), "x", sel)
	require.NoError(t, err)
	assert.Equal(t, core.Allowed, rec.CombinedVerdict)
	assert.Equal(t, detector.PolicyAll, e.Policy())
}

func TestDecideRecordFields(t *testing.T) {
	waf, ml := newFakes(core.Blocked, core.Allowed)
	fixed := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	e := New(catalog.Default(), waf, ml, Config{}, testLogger(), WithClock(func() time.Time { return fixed }))

	payload := "  ' OR 1=1-- \n"
	rec, err := e.Decide(context.Background(), payload, sel)
	require.NoError(t, err)

	assert.Equal(t, payload, rec.Payload)
	assert.Equal(t, "rf", rec.ModelID)
	assert.Equal(t, "modsec", rec.DatasetID)
	assert.Equal(t, fixed.UTC(), rec.Timestamp)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, []core.Selector{sel}, ml.bound)
}

func TestDecideIsDeterministic(t *testing.T) {
	waf, ml := newFakes(core.Allowed, core.Blocked)
	e := New(catalog.Default(), waf, ml, Config{}, testLogger())

	first, err := e.Decide(context.Background(), "x", sel)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		rec, err := e.Decide(context.Background(), "x", sel)
		require.NoError(t, err)
		assert.Equal(t, first.CombinedVerdict, rec.CombinedVerdict)
		assert.NotEqual(t, first.ID, rec.ID)
	}
}

func TestDecideUnknownSelectorMakesNoCalls(t *testing.T) {
	waf, ml := newFakes(core.Blocked, core.Blocked)
	mem := audit.NewMemory(0)
	rec := audit.NewRecorder(mem, 8, testLogger())
	e := New(catalog.Default(), waf, ml, Config{}, testLogger(), WithRecorder(rec))

	_, err := e.Decide(context.Background(), "x", core.Selector{DatasetID: "modsec", ModelID: "bert"})
	assert.ErrorIs(t, err, core.ErrUnknownModel)
	_, err = e.Decide(context.Background(), "x", core.Selector{DatasetID: "imdb", ModelID: "rf"})
	assert.ErrorIs(t, err, core.ErrUnknownDataset)

	require.NoError(t, rec.Close())
	assert.Zero(t, waf.calls.Load())
	assert.Zero(t, ml.calls.Load())
	assert.Empty(t, mem.Records())
}

func TestDecideDetectorFailure(t *testing.T) {
	waf, ml := newFakes(core.Allowed, core.Blocked)
	waf.err = errors.New("connection refused")
	mem := audit.NewMemory(0)
	rec := audit.NewRecorder(mem, 8, testLogger())
	m := metrics.New(nil)
	e := New(catalog.Default(), waf, ml, Config{}, testLogger(), WithRecorder(rec), WithMetrics(m))

	out, err := e.Decide(context.Background(), "x", sel)
	var de *core.DetectorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, detector.WAFName, de.Detector)
	assert.True(t, IsDetectorFailure(err))
	assert.Empty(t, out.CombinedVerdict)

	// the other detector still ran
	assert.Equal(t, int32(1), ml.calls.Load())

	require.NoError(t, rec.Close())
	assert.Empty(t, mem.Records())
}

func TestDecideInvalidVerdictIsFailure(t *testing.T) {
	waf, ml := newFakes(core.Allowed, core.Verdict("Maybe"))
	e := New(catalog.Default(), waf, ml, Config{}, testLogger())

	_, err := e.Decide(context.Background(), "x", sel)
	var de *core.DetectorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, detector.MLName, de.Detector)
}

func TestDecideTimeout(t *testing.T) {
	waf, ml := newFakes(core.Allowed, core.Allowed)
	ml.delay = time.Second
	e := New(catalog.Default(), waf, ml, Config{DetectorTimeout: 20 * time.Millisecond}, testLogger())

	start := time.Now()
	_, err := e.Decide(context.Background(), "x", sel)
	var de *core.DetectorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, detector.MLName, de.Detector)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// stubbornDetector blocks for its full delay regardless of ctx.
type stubbornDetector struct {
	name  string
	delay time.Duration
}

func (s *stubbornDetector) Name() string { return s.name }

func (s *stubbornDetector) Evaluate(ctx context.Context, payload string) (core.Verdict, error) {
	time.Sleep(s.delay)
	return core.Allowed, nil
}

type stubbornML struct{ *stubbornDetector }

func (s stubbornML) Bind(core.Selector) core.Detector { return s.stubbornDetector }

func TestDecideTimeoutIgnoredContext(t *testing.T) {
	waf := &stubbornDetector{name: detector.WAFName, delay: time.Second}
	ml := stubbornML{&stubbornDetector{name: detector.MLName, delay: time.Second}}
	e := New(catalog.Default(), waf, ml, Config{DetectorTimeout: 50 * time.Millisecond}, testLogger())

	start := time.Now()
	out, err := e.Decide(context.Background(), "x", sel)
	var de *core.DetectorError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, out.CombinedVerdict)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDecideRunsDetectorsConcurrently(t *testing.T) {
	waf, ml := newFakes(core.Blocked, core.Allowed)
	waf.started, ml.started = make(chan struct{}), make(chan struct{})
	// each waits until the other has started, which deadlocks if run serially
	waf.wait, ml.wait = ml.started, waf.started

	e := New(catalog.Default(), waf, ml, Config{}, testLogger())
	rec, err := e.Decide(context.Background(), "x", sel)
	require.NoError(t, err)
	assert.Equal(t, core.Blocked, rec.CombinedVerdict)
}

func TestDecideAuditsOncePerDecision(t *testing.T) {
	waf, ml := newFakes(core.Blocked, core.Allowed)
	mem := audit.NewMemory(0)
	rec := audit.NewRecorder(mem, 64, testLogger())
	e := New(catalog.Default(), waf, ml, Config{}, testLogger(), WithRecorder(rec))

	var ids []string
	for i := 0; i < 5; i++ {
		out, err := e.Decide(context.Background(), "x", sel)
		require.NoError(t, err)
		ids = append(ids, out.ID)
	}
	require.NoError(t, rec.Close())

	records := mem.Records()
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, ids[i], r.ID)
		assert.Equal(t, core.Blocked, r.CombinedVerdict)
	}
}

type rejectingRecorder struct{ calls int }

func (r *rejectingRecorder) Record(core.DecisionRecord) error {
	r.calls++
	return audit.ErrQueueFull
}

func TestDecideSurvivesAuditFailure(t *testing.T) {
	waf, ml := newFakes(core.Allowed, core.Allowed)
	r := &rejectingRecorder{}
	e := New(catalog.Default(), waf, ml, Config{}, testLogger(), WithRecorder(r))

	out, err := e.Decide(context.Background(), "x", sel)
	require.NoError(t, err)
	assert.Equal(t, core.Allowed, out.CombinedVerdict)
	assert.Equal(t, 1, r.calls)
}
