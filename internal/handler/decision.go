// Package handler serves the Decision Service HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/pkg/response"
	"github.com/albepe01/NetworkSecurity-Project/pkg/validator"
)

// maxBodyBytes leaves room for the payload plus the selector fields.
const maxBodyBytes = validator.MaxPayloadBytes + 4096

// Validator rejects selections outside the catalog.
type Validator interface {
	Validate(sel core.Selector) error
}

// PayloadResolver maps a replay index to a corpus payload.
type PayloadResolver interface {
	At(dataset, model string, pt core.PayloadType, index int) (string, error)
}

type DecisionHandler struct {
	decider core.Decider
	catalog Validator
	corpus  PayloadResolver
	logger  *slog.Logger
}

// NewDecisionHandler wires the decide endpoint. corpus may be nil, in which
// case replay requests are rejected.
func NewDecisionHandler(decider core.Decider, catalog Validator, corpus PayloadResolver, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{decider: decider, catalog: catalog, corpus: corpus, logger: logger}
}

// decideRequest accepts both the current field names and the ones used by the
// older demo page and clients.
type decideRequest struct {
	Payload       *string  `json:"payload"`
	Query         *string  `json:"query"`
	ModelID       string   `json:"model_id"`
	Model         string   `json:"model"`
	ModelChoice   string   `json:"model_choice"`
	DatasetID     string   `json:"dataset_id"`
	Dataset       string   `json:"dataset"`
	DatasetChoice string   `json:"dataset_choice"`
	PayloadIndex  *flexInt `json:"payloadIndex"`
	PayloadType   string   `json:"payloadType"`
}

// flexInt accepts 3 as well as "3".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("payloadIndex: %w", err)
	}
	*f = flexInt(n)
	return nil
}

func (req decideRequest) selector() core.Selector {
	return core.Selector{
		DatasetID: firstNonEmpty(req.DatasetID, req.Dataset, req.DatasetChoice),
		ModelID:   firstNonEmpty(req.ModelID, req.Model, req.ModelChoice),
	}
}

// literal returns the sent payload, preferring payload over query. An empty
// field still counts as sent.
func (req decideRequest) literal() (string, bool) {
	switch {
	case req.Payload != nil && *req.Payload != "":
		return *req.Payload, true
	case req.Query != nil && *req.Query != "":
		return *req.Query, true
	}
	return "", req.Payload != nil || req.Query != nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.MethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := parseDecideRequest(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	sel := req.selector()
	if err := h.catalog.Validate(sel); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	payload, err := h.resolvePayload(req, sel)
	if err != nil {
		h.writeError(w, sel, err)
		return
	}

	rec, err := h.decider.Decide(r.Context(), payload, sel)
	if err != nil {
		h.writeError(w, sel, err)
		return
	}
	response.JSON(w, rec, http.StatusOK)
}

func parseDecideRequest(r *http.Request) (decideRequest, error) {
	var req decideRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("invalid form body: %w", err)
	}
	req.Payload = formField(r, "payload")
	req.Query = formField(r, "query")
	req.ModelID = r.PostFormValue("model_id")
	req.Model = r.PostFormValue("model")
	req.ModelChoice = r.PostFormValue("model_choice")
	req.DatasetID = r.PostFormValue("dataset_id")
	req.Dataset = r.PostFormValue("dataset")
	req.DatasetChoice = r.PostFormValue("dataset_choice")
	req.PayloadType = r.PostFormValue("payloadType")
	if raw := r.PostFormValue("payloadIndex"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("payloadIndex: %w", err)
		}
		idx := flexInt(n)
		req.PayloadIndex = &idx
	}
	return req, nil
}

func formField(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}

// resolvePayload returns the literal payload, or the corpus entry named by
// the replay index when the payload is empty. An empty payload without an
// index is evaluated as is; a missing one is rejected.
func (h *DecisionHandler) resolvePayload(req decideRequest, sel core.Selector) (string, error) {
	payload, sent := req.literal()
	if payload == "" && req.PayloadIndex == nil {
		if !sent {
			return "", core.ErrEmptyPayload
		}
		return payload, nil
	}
	if payload == "" {
		if h.corpus == nil {
			return "", fmt.Errorf("%w: replay is not enabled", core.ErrUnknownPayloadType)
		}
		pt, err := core.ParsePayloadType(req.PayloadType)
		if err != nil {
			return "", err
		}
		payload, err = h.corpus.At(sel.DatasetID, sel.ModelID, pt, int(*req.PayloadIndex))
		if err != nil {
			return "", err
		}
	}
	if err := validator.Payload(payload); err != nil {
		return "", err
	}
	return payload, nil
}

func (h *DecisionHandler) writeError(w http.ResponseWriter, sel core.Selector, err error) {
	var de *core.DetectorError
	switch {
	case core.IsSelectorError(err),
		errors.Is(err, validator.ErrPayloadTooLarge),
		errors.Is(err, validator.ErrInvalidEncoding):
		response.BadRequest(w, err.Error())
	case errors.As(err, &de):
		response.BadGateway(w, de.Error())
	default:
		h.logger.Error("decision failed", "dataset", sel.DatasetID, "model", sel.ModelID, "error", err)
		response.InternalServerError(w, "Internal server error")
	}
}
