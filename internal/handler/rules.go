package handler

import (
	"log/slog"
	"net/http"

	"github.com/albepe01/NetworkSecurity-Project/internal/rules"
	"github.com/albepe01/NetworkSecurity-Project/pkg/response"
)

// RuleHandler exposes the signature set of the local rule engine read-only.
type RuleHandler struct {
	source    rules.Source
	engine    *rules.Engine
	threshold int
	logger    *slog.Logger
}

func NewRuleHandler(source rules.Source, engine *rules.Engine, threshold int, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{source: source, engine: engine, threshold: threshold, logger: logger}
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.source.GetAll(r.Context())
	if err != nil {
		h.logger.Error("fetch rules", "error", err)
		response.InternalServerError(w, "Failed to fetch rules")
		return
	}
	response.Success(w, map[string]interface{}{
		"paranoia_level":    h.engine.ParanoiaLevel(),
		"anomaly_threshold": h.threshold,
		"active":            h.engine.RuleIDs(),
		"rules":             all,
	}, "")
}
