// Package detector adapts the signature WAF and the ML classifiers to the
// core.Detector contract. Adapters never alter the payload and report
// infrastructure failures as *core.DetectorError, never as Allowed.
package detector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/rules"
)

const (
	WAFName = "waf"
	MLName  = "ml"

	// DefaultAnomalyThreshold is the inbound anomaly score that blocks a payload.
	DefaultAnomalyThreshold = 5
)

// HTTPWAF submits the payload to an external rule engine fronting a dummy
// origin. A 403 means the engine rejected it; any 2xx (or a 404 from an origin
// without that route) means it passed.
type HTTPWAF struct {
	URL    string
	Field  string
	Client *http.Client
}

func NewHTTPWAF(target string, timeout time.Duration) *HTTPWAF {
	return &HTTPWAF{URL: target, Field: "query", Client: &http.Client{Timeout: timeout}}
}

func (w *HTTPWAF) Name() string { return WAFName }

func (w *HTTPWAF) Evaluate(ctx context.Context, payload string) (core.Verdict, error) {
	form := url.Values{}
	form.Set(w.Field, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", core.NewDetectorError(WAFName, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.Client.Do(req)
	if err != nil {
		return "", core.NewDetectorError(WAFName, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return core.Blocked, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusNotFound:
		return core.Allowed, nil
	}
	return "", core.NewDetectorError(WAFName, fmt.Errorf("unexpected status %d", resp.StatusCode))
}

// RuleWAF evaluates the payload against an in-process rule engine.
type RuleWAF struct {
	Engine    *rules.Engine
	Threshold int
}

func NewRuleWAF(engine *rules.Engine, threshold int) *RuleWAF {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return &RuleWAF{Engine: engine, Threshold: threshold}
}

func (w *RuleWAF) Name() string { return WAFName }

func (w *RuleWAF) Evaluate(ctx context.Context, payload string) (core.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return "", core.NewDetectorError(WAFName, err)
	}
	m := w.Engine.Match(payload)
	if m.HardBlock || m.Score >= w.Threshold {
		return core.Blocked, nil
	}
	return core.Allowed, nil
}
