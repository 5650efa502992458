package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/pkg/response"
)

type SystemHandler struct {
	audit core.AuditReader
	now   func() time.Time
}

// NewSystemHandler reports liveness. audit may be nil when no queryable
// audit store is configured.
func NewSystemHandler(audit core.AuditReader) *SystemHandler {
	return &SystemHandler{audit: audit, now: time.Now}
}

func (h *SystemHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"system": "operational",
		"audit":  "disabled",
		"time":   h.now().UTC().Format(time.RFC3339),
	}

	if h.audit != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.audit.Ping(ctx); err != nil {
			status["audit"] = "disconnected"
		} else {
			status["audit"] = "connected"
		}
	}

	response.Success(w, status, "")
}
