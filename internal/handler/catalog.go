package handler

import (
	"net/http"

	"github.com/albepe01/NetworkSecurity-Project/internal/catalog"
	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
	"github.com/albepe01/NetworkSecurity-Project/pkg/response"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
	policy  detector.Policy
}

func NewCatalogHandler(c *catalog.Catalog, policy detector.Policy) *CatalogHandler {
	return &CatalogHandler{catalog: c, policy: policy}
}

// List returns the datasets, their models and replayable payload types.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]interface{}{
		"datasets": h.catalog.Datasets,
		"policy":   h.policy,
	}, "")
}
