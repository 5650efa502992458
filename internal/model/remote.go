package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

type PredictRequest struct {
	DatasetID string    `json:"dataset_id"`
	ModelID   string    `json:"model_id"`
	Features  []float64 `json:"features"`
}

type PredictResponse struct {
	Label int `json:"label"`
}

// Remote delegates prediction to a model server that hosts the artifacts.
type Remote struct {
	URL    string
	Sel    core.Selector
	Client *http.Client
}

func (r *Remote) Predict(ctx context.Context, x core.FeatureVector) (int, error) {
	jsonData, err := json.Marshal(PredictRequest{
		DatasetID: r.Sel.DatasetID,
		ModelID:   r.Sel.ModelID,
		Features:  x,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(jsonData))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("model server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("model server returned %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode prediction: %w", err)
	}
	return result.Label, nil
}

// RemoteLoader hands out Remote classifiers for catalog selections.
type RemoteLoader struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

func NewRemoteLoader(url string, timeout time.Duration) *RemoteLoader {
	return &RemoteLoader{URL: url, Timeout: timeout, client: &http.Client{Timeout: timeout}}
}

func (l *RemoteLoader) Load(ctx context.Context, sel core.Selector) (core.Classifier, error) {
	return &Remote{URL: l.URL, Sel: sel, Client: l.client}, nil
}
