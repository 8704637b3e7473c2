package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/example/lingoflow/internal/api/http/responders"
	"github.com/example/lingoflow/internal/errcode"
	"github.com/example/lingoflow/internal/model"
	"github.com/example/lingoflow/internal/provider"
)

func (h *handlers) languages(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"languages": h.Registry.Enabled(),
		"defaults": map[string]string{
			"source_language": h.Registry.DefaultSource(),
			"target_language": h.Registry.DefaultTarget(),
		},
	})
}

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	entries := model.ListModels(h.Config.ModelsDir())
	if entries == nil {
		entries = []model.Entry{}
	}
	responders.JSON(w, http.StatusOK, map[string]any{
		"models":            entries,
		"active_model_id":   h.Manager.ActiveID(),
		"selected_model_id": h.sessions.SelectedModel(r),
		"switching_policy":  h.Config.SwitchPolicy(),
	})
}

type selectionBody struct {
	ModelID string `json:"model_id"`
}

func (h *handlers) setSelection(w http.ResponseWriter, r *http.Request) {
	var body selectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responders.Error(w, errcode.InvalidJSON, "")
		return
	}
	if err := model.ValidateModelID(body.ModelID); err != nil {
		responders.Error(w, errcode.ModelInvalidID, "")
		return
	}
	if _, ok := model.Find(h.Config.ModelsDir(), body.ModelID); !ok {
		responders.Error(w, errcode.ModelNotFound, "")
		return
	}

	h.sessions.SetSelectedModel(w, r, body.ModelID)
	responders.JSON(w, http.StatusOK, map[string]string{
		"selected_model_id": body.ModelID,
	})
}

type switchBody struct {
	ModelID string `json:"model_id"`
	Force   bool   `json:"force"`
}

func (h *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	var body switchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		responders.Error(w, errcode.InvalidJSON, "")
		return
	}

	if err := h.Manager.Switch(r.Context(), body.ModelID, body.Force); err != nil {
		responders.ErrorFrom(w, err, "")
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{
		"active_model_id": h.Manager.ActiveID(),
		"execution_mode":  string(h.Manager.ExecutionMode()),
	})
}

// progressPayload is shared by the public and admin progress readers.
func (h *handlers) progressPayload() map[string]any {
	return map[string]any{
		"status":           string(h.Manager.State()),
		"loading_progress": h.Manager.Progress(),
		"execution_mode":   string(h.Manager.ExecutionMode()),
		"error_message":    h.Manager.ErrorMessage(),
	}
}

func (h *handlers) loadProgress(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, h.progressPayload())
}

// triggerLoad starts an asynchronous load of the configured model. The
// handler never blocks behind the load itself.
func (h *handlers) triggerLoad(w http.ResponseWriter, r *http.Request) {
	switch h.Manager.State() {
	case provider.StateLoaded:
		responders.JSON(w, http.StatusOK, h.progressPayload())
		return
	case provider.StateLoading:
		responders.JSON(w, http.StatusAccepted, h.progressPayload())
		return
	}

	go func() {
		if err := h.Manager.EnsureLoaded(context.Background()); err != nil {
			h.Logger.Error("background model load failed", "err", err)
		}
	}()
	responders.JSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

func (h *handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	h.Manager.Unload()
	responders.JSON(w, http.StatusOK, map[string]string{
		"status": string(provider.StateNotLoaded),
	})
}
