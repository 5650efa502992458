// Package features derives fixed-dimension vectors from payloads for the
// classifiers. The default extractor mirrors the rule-activation encoding the
// classifiers were trained on: one dimension per signature rule, set to 1
// when the rule fires on the payload.
package features

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/rules"
)

// RuleActivation encodes which rules of the engine fire on a payload.
type RuleActivation struct {
	engine *rules.Engine
	ids    []string
}

func NewRuleActivation(engine *rules.Engine) *RuleActivation {
	return &RuleActivation{engine: engine, ids: engine.RuleIDs()}
}

func (r *RuleActivation) Dim() int { return len(r.ids) }

// RuleIDs names each dimension of the vector, in order.
func (r *RuleActivation) RuleIDs() []string { return r.ids }

func (r *RuleActivation) Extract(ctx context.Context, payload string) (core.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := r.engine.Match(payload)
	fired := make(map[string]bool, len(m.RuleIDs))
	for _, id := range m.RuleIDs {
		fired[id] = true
	}
	x := make(core.FeatureVector, len(r.ids))
	for i, id := range r.ids {
		if fired[id] {
			x[i] = 1
		}
	}
	return x, nil
}

type remoteRequest struct {
	Payload string `json:"payload"`
}

type remoteResponse struct {
	Features []float64 `json:"features"`
}

// Remote asks an external extractor service for the vector.
type Remote struct {
	URL    string
	Client *http.Client
	dim    int
}

func NewRemote(url string, dim int, timeout time.Duration) *Remote {
	return &Remote{URL: url, dim: dim, Client: &http.Client{Timeout: timeout}}
}

func (r *Remote) Dim() int { return r.dim }

func (r *Remote) Extract(ctx context.Context, payload string) (core.FeatureVector, error) {
	body, err := json.Marshal(remoteRequest{Payload: payload})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature extractor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature extractor returned %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if r.dim > 0 && len(out.Features) != r.dim {
		return nil, fmt.Errorf("feature extractor returned %d dimensions, want %d", len(out.Features), r.dim)
	}
	return core.FeatureVector(out.Features), nil
}
