package router

import (
	"net/http"

	"github.com/albepe01/NetworkSecurity-Project/internal/handler"
)

// Handlers groups everything the mux routes to. Optional entries may be nil.
type Handlers struct {
	DecideEndpoint string
	Decision       *handler.DecisionHandler
	Catalog        *handler.CatalogHandler
	System         *handler.SystemHandler
	Audit          *handler.AuditHandler
	Rules          *handler.RuleHandler
	Metrics        http.Handler

	// Protect wraps the decision endpoint, e.g. with bearer auth.
	Protect func(http.Handler) http.Handler
}

// Setup configures all API routes and returns the configured mux
func Setup(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	var decide http.Handler = http.HandlerFunc(h.Decision.Decide)
	if h.Protect != nil {
		decide = h.Protect(decide)
	}
	endpoint := h.DecideEndpoint
	if endpoint == "" {
		endpoint = "/api/decide"
	}
	mux.Handle(endpoint, decide)

	// Public
	mux.HandleFunc("GET /api/status", h.System.SystemStatus)
	mux.HandleFunc("GET /api/catalog", h.Catalog.List)

	// Audit
	if h.Audit != nil {
		mux.HandleFunc("GET /api/audit", h.Audit.List)
		mux.HandleFunc("GET /api/stream", h.Audit.Stream)
	}

	if h.Rules != nil {
		mux.HandleFunc("GET /api/rules", h.Rules.List)
	}

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	return mux
}
