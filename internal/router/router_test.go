package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"
	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
	"github.com/albepe01/NetworkSecurity-Project/internal/handler"
	"github.com/albepe01/NetworkSecurity-Project/internal/metrics"

	"github.com/stretchr/testify/assert"
)

type allowAll struct{}

func (allowAll) Decide(ctx context.Context, payload string, sel core.Selector) (core.DecisionRecord, error) {
	return core.DecisionRecord{Payload: payload, CombinedVerdict: core.Allowed}, nil
}

func TestSetup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Default()
	denied := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	mux := Setup(Handlers{
		DecideEndpoint: "/check",
		Decision:       handler.NewDecisionHandler(allowAll{}, cat, nil, logger),
		Catalog:        handler.NewCatalogHandler(cat, detector.PolicyAny),
		System:         handler.NewSystemHandler(nil),
		Metrics:        metrics.New(nil).Handler(),
		Protect:        denied,
	})

	tests := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/api/catalog", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/check", http.StatusUnauthorized},
		{http.MethodPost, "/api/decide", http.StatusNotFound},
		{http.MethodGet, "/api/audit", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("")))
		assert.Equal(t, tt.code, rec.Code, "%s %s", tt.method, tt.path)
	}
}
