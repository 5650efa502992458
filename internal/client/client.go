// Package client talks to a running Decision Service so the evaluation
// harness can replay corpora against a remote deployment.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// DecideRequest is the JSON body accepted by the decide endpoint.
type DecideRequest struct {
	Payload   string `json:"payload"`
	ModelID   string `json:"model_id"`
	DatasetID string `json:"dataset_id"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client implements core.Decider over HTTP.
type Client struct {
	URL   string
	Token string
	http  *http.Client
}

func New(url string, timeout time.Duration) *Client {
	return &Client{URL: url, http: &http.Client{Timeout: timeout}}
}

// WithToken sets the bearer token sent on every request.
func (c *Client) WithToken(token string) *Client {
	c.Token = token
	return c
}

func (c *Client) Decide(ctx context.Context, payload string, sel core.Selector) (core.DecisionRecord, error) {
	body, err := json.Marshal(DecideRequest{Payload: payload, ModelID: sel.ModelID, DatasetID: sel.DatasetID})
	if err != nil {
		return core.DecisionRecord{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return core.DecisionRecord{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return core.DecisionRecord{}, ctx.Err()
		}
		return core.DecisionRecord{}, fmt.Errorf("decision service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.DecisionRecord{}, statusError(resp)
	}

	var rec core.DecisionRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return core.DecisionRecord{}, fmt.Errorf("decode decision: %w", err)
	}
	if _, err := core.ParseVerdict(string(rec.CombinedVerdict)); err != nil {
		return core.DecisionRecord{}, fmt.Errorf("decision service: %w", err)
	}
	return rec, nil
}

// statusError turns a non-200 reply into the error the engine would have
// returned in-process, so callers classify failures the same way.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &eb) == nil {
		if eb.Message != "" {
			msg = eb.Message
		} else if eb.Error != "" {
			msg = eb.Error
		}
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", selectorError(msg), msg)
	case http.StatusBadGateway:
		return &core.DetectorError{Detector: detectorName(msg), Err: errors.New(msg)}
	}
	return fmt.Errorf("decision service returned %d: %s", resp.StatusCode, msg)
}

func selectorError(msg string) error {
	switch {
	case strings.Contains(msg, core.ErrUnknownDataset.Error()):
		return core.ErrUnknownDataset
	case strings.Contains(msg, core.ErrUnknownPayloadType.Error()):
		return core.ErrUnknownPayloadType
	case strings.Contains(msg, core.ErrEmptyPayload.Error()):
		return core.ErrEmptyPayload
	}
	return core.ErrUnknownModel
}

func detectorName(msg string) string {
	if name, _, ok := strings.Cut(msg, " detector"); ok && name != "" && !strings.Contains(name, " ") {
		return name
	}
	return "remote"
}
