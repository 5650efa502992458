package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/pkg/response"
	"github.com/albepe01/NetworkSecurity-Project/pkg/validator"
)

// Subscriber hands out live decision feeds.
type Subscriber interface {
	Subscribe(buffer int) (<-chan core.DecisionRecord, func())
}

type AuditHandler struct {
	reader    core.AuditReader
	stream    Subscriber
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewAuditHandler serves the audit query and the live stream. Either source
// may be nil, in which case its endpoint answers 503.
func NewAuditHandler(reader core.AuditReader, stream Subscriber, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{reader: reader, stream: stream, logger: logger, heartbeat: 15 * time.Second}
}

// List returns audit entries newest first.
// Query: page, limit, dataset_id, model_id, verdict.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		response.ServiceUnavailable(w, "Audit store does not support queries")
		return
	}

	q := r.URL.Query()
	page, _ := strconv.ParseInt(q.Get("page"), 10, 64)
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	if err := validator.Page(page, limit); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	filter := core.AuditFilter{
		DatasetID: q.Get("dataset_id"),
		ModelID:   q.Get("model_id"),
		Page:      page,
		Limit:     limit,
	}
	if v := q.Get("verdict"); v != "" {
		verdict, err := core.ParseVerdict(v)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		filter.Verdict = verdict
	}

	result, err := h.reader.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		response.InternalServerError(w, "Failed to fetch audit entries")
		return
	}

	response.Paginated(w, result.Data, response.Pagination{
		CurrentPage: result.Pagination.CurrentPage,
		TotalPages:  result.Pagination.TotalPages,
		TotalItems:  result.Pagination.TotalItems,
		PerPage:     result.Pagination.PerPage,
	})
}

// Stream pushes every decision to the client as a server-sent event.
func (h *AuditHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		response.ServiceUnavailable(w, "Decision stream is disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering
	w.Header().Set("X-Accel-Buffering", "no")

	records, release := h.stream.Subscribe(64)
	defer release()

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case rec, open := <-records:
			if !open {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				h.logger.Error("encode stream event", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\ndata: %s\n\n", rec.ID, data)
			flusher.Flush()
		}
	}
}
