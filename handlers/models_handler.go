package handlers

import (
	"net/http"
	"time"

	"github.com/modelgate/modelgate/utils"
	"go.uber.org/zap"
)

// ModelCatalog exposes the aggregated model list of the active snapshot
type ModelCatalog interface {
	// Models returns every model any provider declares, deduplicated
	Models() []string

	// OwnerOf returns the highest-priority provider declaring the model
	OwnerOf(model string) (string, bool)
}

// ModelList is an OpenAI-compatible model listing
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo describes one model in the catalog
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsHandler serves the aggregated model catalog
type ModelsHandler struct {
	catalog ModelCatalog
	since   int64
	logger  *zap.Logger
}

// NewModelsHandler creates a new ModelsHandler
func NewModelsHandler(catalog ModelCatalog, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		catalog: catalog,
		since:   time.Now().Unix(),
		logger:  logger,
	}
}

// HandleListModels handles GET /v1/models. Every model any configured
// provider declares is listed once, owned by its highest-priority provider.
func (h *ModelsHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	names := h.catalog.Models()

	data := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		owner, ok := h.catalog.OwnerOf(name)
		if !ok {
			continue
		}
		data = append(data, ModelInfo{
			ID:      name,
			Object:  "model",
			Created: h.since,
			OwnedBy: owner,
		})
	}

	if err := utils.WriteJSON(w, http.StatusOK, ModelList{Object: "list", Data: data}); err != nil {
		h.logger.Error("failed to write model list response", zap.Error(err))
	}
}
