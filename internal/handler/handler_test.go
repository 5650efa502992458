package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/audit"
	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
	"github.com/albepe01/NetworkSecurity-Project/internal/engine"
	"github.com/albepe01/NetworkSecurity-Project/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scripted answers from a fixed table and counts invocations.
type scripted struct {
	name    string
	answers map[string]core.Verdict
	fail    map[string]bool
	calls   atomic.Int32
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Evaluate(ctx context.Context, payload string) (core.Verdict, error) {
	s.calls.Add(1)
	if s.fail[payload] {
		return "", errors.New("connection refused")
	}
	if v, ok := s.answers[payload]; ok {
		return v, nil
	}
	return core.Allowed, nil
}

func (s *scripted) Bind(core.Selector) core.Detector { return s }

type fixedCorpus map[core.PayloadType][]string

func (c fixedCorpus) At(dataset, model string, pt core.PayloadType, index int) (string, error) {
	payloads := c[pt]
	if len(payloads) == 0 {
		return "", core.ErrMalformedCorpus
	}
	return payloads[index%len(payloads)], nil
}

type fixture struct {
	waf, ml *scripted
	handler *DecisionHandler
}

func newFixture() *fixture {
	waf := &scripted{name: detector.WAFName, answers: map[string]core.Verdict{
		"' OR 1=1--": core.Blocked,
	}}
	ml := &scripted{name: detector.MLName, answers: map[string]core.Verdict{
		"admin'/**/OR/**/1=1#": core.Blocked,
	}, fail: map[string]bool{"unreachable": true}}

	cat := catalog.Default()
	eng := engine.New(cat, waf, ml, engine.Config{Policy: detector.PolicyAny}, testLogger())
	corpus := fixedCorpus{
		core.PayloadLegitimate: {"hello world", "select a book"},
		core.PayloadMalicious:  {"' OR 1=1--"},
	}
	return &fixture{waf: waf, ml: ml, handler: NewDecisionHandler(eng, cat, corpus, testLogger())}
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/decide", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) core.DecisionRecord {
	t.Helper()
	var out core.DecisionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestDecideScenarios(t *testing.T) {
	tests := []struct {
		name              string
		payload           string
		waf, ml, combined core.Verdict
	}{
		{"waf blocks", "' OR 1=1--", core.Blocked, core.Allowed, core.Blocked},
		{"both allow", "hello world", core.Allowed, core.Allowed, core.Allowed},
		{"ml catches waf evasion", "admin'/**/OR/**/1=1#", core.Allowed, core.Blocked, core.Blocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := postJSON(t, f.handler.Decide, map[string]string{
				"payload": tt.payload, "model_id": "rf", "dataset_id": "modsec",
			})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			out := decode(t, rec)
			assert.Equal(t, tt.waf, out.WAFVerdict)
			assert.Equal(t, tt.ml, out.MLVerdict)
			assert.Equal(t, tt.combined, out.CombinedVerdict)
			assert.Equal(t, tt.payload, out.Payload)
			assert.Equal(t, "rf", out.ModelID)
			assert.Equal(t, "modsec", out.DatasetID)
			assert.NotEmpty(t, out.ID)
			assert.False(t, out.Timestamp.IsZero())
		})
	}
}

func TestDecideFormCompatibility(t *testing.T) {
	f := newFixture()
	form := url.Values{
		"query":          {"' OR 1=1--"},
		"model_choice":   {"log_reg_l1"},
		"dataset_choice": {"wafamole"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/decide", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.Decide(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, core.Blocked, out.CombinedVerdict)
	assert.Equal(t, "log_reg_l1", out.ModelID)
	assert.Equal(t, "wafamole", out.DatasetID)
}

func TestDecideLegacyJSONFields(t *testing.T) {
	f := newFixture()
	rec := postJSON(t, f.handler.Decide, map[string]string{
		"payload": "hello world", "model": "inf_svm", "dataset": "modsec",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inf_svm", decode(t, rec).ModelID)
}

func TestDecideUnknownSelectorCallsNoDetector(t *testing.T) {
	for _, body := range []map[string]string{
		{"payload": "x", "model_id": "gpt", "dataset_id": "modsec"},
		{"payload": "x", "model_id": "rf", "dataset_id": "imagenet"},
	} {
		f := newFixture()
		rec := postJSON(t, f.handler.Decide, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, f.waf.calls.Load())
		assert.Zero(t, f.ml.calls.Load())
	}
}

func TestDecideReplay(t *testing.T) {
	f := newFixture()
	rec := postJSON(t, f.handler.Decide, map[string]interface{}{
		"model_id": "rf", "dataset_id": "modsec", "payloadType": "legit", "payloadIndex": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "select a book", decode(t, rec).Payload)

	rec = postJSON(t, f.handler.Decide, map[string]interface{}{
		"model_id": "rf", "dataset_id": "modsec", "payloadType": "malicious", "payloadIndex": "7",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.Blocked, decode(t, rec).CombinedVerdict)

	rec = postJSON(t, f.handler.Decide, map[string]interface{}{
		"model_id": "rf", "dataset_id": "modsec", "payloadType": "benign", "payloadIndex": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecideEmptyPayloadIsEvaluated(t *testing.T) {
	f := newFixture()
	rec := postJSON(t, f.handler.Decide, map[string]string{
		"payload": "", "model_id": "rf", "dataset_id": "modsec",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Empty(t, out.Payload)
	assert.Equal(t, core.Allowed, out.CombinedVerdict)
	assert.Equal(t, int32(1), f.waf.calls.Load())
	assert.Equal(t, int32(1), f.ml.calls.Load())

	form := url.Values{"query": {""}, "model": {"rf"}, "dataset": {"modsec"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	fr := httptest.NewRecorder()
	f.handler.Decide(fr, req)
	assert.Equal(t, http.StatusOK, fr.Code, fr.Body.String())
}

func TestDecideErrors(t *testing.T) {
	f := newFixture()

	rec := postJSON(t, f.handler.Decide, map[string]string{"model_id": "rf", "dataset_id": "modsec"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, f.handler.Decide, map[string]string{
		"payload": "unreachable", "model_id": "rf", "dataset_id": "modsec",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "ml detector")
	// both detectors still ran
	assert.Equal(t, int32(1), f.waf.calls.Load())

	req := httptest.NewRequest(http.MethodPost, "/api/decide", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	bad := httptest.NewRecorder()
	f.handler.Decide(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	get := httptest.NewRecorder()
	f.handler.Decide(get, httptest.NewRequest(http.MethodGet, "/api/decide", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, get.Code)
}

func TestCatalogList(t *testing.T) {
	h := NewCatalogHandler(catalog.Default(), detector.PolicyAny)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Datasets []struct {
				ID     string `json:"id"`
				Models []struct {
					ID string `json:"id"`
				} `json:"models"`
			} `json:"datasets"`
			Policy string `json:"policy"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "any", body.Data.Policy)
	require.Len(t, body.Data.Datasets, 2)
	assert.Len(t, body.Data.Datasets[0].Models, 6)
	assert.NotContains(t, rec.Body.String(), "artifact")
}

type downReader struct{ audit.Memory }

func (d *downReader) Ping(context.Context) error { return errors.New("no route") }

func TestSystemStatus(t *testing.T) {
	tests := []struct {
		reader core.AuditReader
		want   string
	}{
		{nil, "disabled"},
		{audit.NewMemory(0), "connected"},
		{&downReader{}, "disconnected"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		NewSystemHandler(tt.reader).SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.want, body.Data["audit"])
		assert.Equal(t, "operational", body.Data["system"])
	}
}

func TestAuditList(t *testing.T) {
	mem := audit.NewMemory(0)
	for i, v := range []core.Verdict{core.Blocked, core.Allowed, core.Blocked} {
		require.NoError(t, mem.Write(context.Background(), core.DecisionRecord{
			ID:              string(rune('a' + i)),
			CombinedVerdict: v,
			DatasetID:       "modsec",
			ModelID:         "rf",
			Timestamp:       time.Unix(int64(i), 0),
		}))
	}
	h := NewAuditHandler(mem, nil, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit?verdict=Blocked&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data       []core.DecisionRecord `json:"data"`
		Pagination response.Pagination   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, core.Blocked, body.Data[0].CombinedVerdict)
	assert.Equal(t, int64(2), body.Pagination.TotalItems)
	assert.Equal(t, int64(2), body.Pagination.TotalPages)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit?verdict=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/audit?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewAuditHandler(nil, nil, testLogger()).List(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStream(t *testing.T) {
	b := audit.NewBroadcaster()
	h := NewAuditHandler(nil, b, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Write(context.Background(), core.DecisionRecord{ID: "d1", CombinedVerdict: core.Blocked}))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	var got core.DecisionRecord
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, core.Blocked, got.CombinedVerdict)
}
