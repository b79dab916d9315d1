package handlers

import (
	"net/http"
	"time"

	"github.com/pysugar/codex-nexus/internal/client"
)

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// Models handles GET /v1/models, listing the model names the proxy accepts.
func Models(w http.ResponseWriter, r *http.Request) {
	created := time.Now().Unix()
	list := modelList{Object: "list"}
	for _, id := range client.SupportedModels() {
		list.Data = append(list.Data, modelEntry{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "codex-nexus",
		})
	}
	writeJSON(w, http.StatusOK, list)
}
